// Package mock is an offline completion engine. It answers by pipeline
// phase with fixed, well-formed payloads wrapped the way real models tend
// to wrap them, so the whole pipeline can run without network access.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm"
)

type Engine struct {
	calls atomic.Int64
}

func New() *Engine { return &Engine{} }

func (e *Engine) Name() string { return "mock" }

// Calls reports how many completions were served.
func (e *Engine) Calls() int64 { return e.calls.Load() }

func (e *Engine) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := req.Valid(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.calls.Add(1)
	phase := llm.PhaseFrom(ctx)
	switch phase {
	case llm.PhaseResearch:
		return researchReply, nil
	case llm.PhaseResearchEnhance:
		return enhanceReply, nil
	case llm.PhaseServices:
		return "Here is the phase-structured service breakdown:\n\n```json\n" + servicesReply + "\n```\n\nLet me know if you need changes.", nil
	case llm.PhaseQuestions:
		return "```json\n" + questionsReply + "\n```", nil
	case llm.PhaseContextQuestions:
		return contextQuestionsReply, nil
	default:
		return "", fmt.Errorf("mock: no scripted reply for phase %q", phase)
	}
}

const researchReply = `{
  "technology": "Microsoft 365 Migration",
  "sources": [
    {"title": "Microsoft 365 migration guide", "url": "https://learn.microsoft.com/microsoft-365/enterprise/migration", "summary": "Official planning and cutover guidance for tenant migrations.", "credibility": "high", "relevance": 0.95, "sourceType": "documentation"},
    {"title": "Exchange Online mailbox migration performance", "url": "https://learn.microsoft.com/exchange/mailbox-migration/office-365-migration-best-practices", "summary": "Throughput figures and batching guidance for mailbox moves.", "credibility": "high", "relevance": 0.9, "sourceType": "documentation"},
    {"title": "Lessons from a 5,000 seat tenant consolidation", "url": "https://example.com/case-studies/tenant-consolidation", "summary": "Case study covering identity cutover, training and hypercare.", "credibility": "medium", "relevance": 0.72, "sourceType": "case study"},
    {"title": "Migration tooling comparison", "url": "https://example.com/blog/m365-migration-tools", "summary": "Comparison of third-party migration tools and licensing.", "credibility": "low", "relevance": 1.4, "sourceType": "blog"}
  ],
  "researchSummary": "Tenant migrations are driven by mailbox count, data volume and site footprint; identity design and end-user readiness dominate risk.",
  "keyInsights": [
    "Mailbox throughput is the main schedule driver",
    "Identity and coexistence design should be settled during planning",
    "Training effort scales with user count"
  ],
  "confidence": 0.82
}`

const enhanceReply = `{"summary": "Verified guidance with concrete sizing figures for migration batches.", "credibility": "high", "relevance": 0.9}`

const servicesReply = `[
  {
    "name": "Project Initiation",
    "description": "Kickoff, discovery and stakeholder alignment for the migration.",
    "phase": "Initiation",
    "serviceDescription": "Establish governance, confirm objectives and assess the current environment.",
    "keyAssumptions": ["Client stakeholders are available for workshops"],
    "clientResponsibilities": ["Provide tenant admin access"],
    "outOfScope": ["Licensing procurement"],
    "subservices": [
      {"name": "Project Kickoff", "description": "Kickoff meeting and charter", "baseHours": 4},
      {"name": "Requirements Workshop", "description": "Per-site requirements gathering", "baseHours": 6, "scalingFactors": ["site_count"], "quantityDriver": "site_count"},
      {"name": "Stakeholder Alignment", "description": "Align sponsors on scope and success criteria", "baseHours": 3},
      {"name": "Current State Assessment", "description": "Inventory users and sites", "baseHours": 0.05, "scalingFactors": ["user_count", "site_count"]}
    ]
  },
  {
    "name": "Migration Planning",
    "description": "Design the target tenant, identity model and migration waves.",
    "phase": "Planning",
    "subservices": [
      {"name": "Migration Wave Plan", "description": "Batch schedule and cutover plan", "baseHours": 8, "scalingFactors": ["complexity"], "calculationRules": {"multiplier": "complexity === 'high' ? 1.5 : 1.0"}},
      {"name": "Network Readiness Review", "description": "Bandwidth and connectivity review per site", "baseHours": 2, "scalingFactors": ["site_count"], "quantityDriver": "site_count"},
      {"name": "Identity Design", "description": "Directory sync and authentication design", "baseHours": 6, "scalingFactors": ["complexity"], "calculationRules": {"multiplier": "complexity === 'high' ? 1.5 : complexity === 'medium' ? 1.2 : 1.0"}},
      {"name": "Communication Plan", "description": "End-user communication schedule", "baseHours": 3}
    ]
  },
  {
    "name": "Migration Execution",
    "description": "Configure the tenant and migrate mailboxes and data.",
    "phase": "Execution",
    "subservices": [
      {"name": "Mailbox Migration", "description": "Move mailboxes in batches", "baseHours": 0.25, "scalingFactors": ["mailbox_count"], "quantityDriver": "mailbox_count"},
      {"name": "Tenant Configuration", "description": "Security and compliance baseline", "baseHours": 12, "scalingFactors": ["complexity"], "calculationRules": {"multiplier": "complexity === 'high' ? 1.5 : 1.0"}},
      {"name": "File Data Migration", "description": "Migrate file shares to SharePoint", "baseHours": 2, "scalingFactors": ["data_volume_gb"], "calculationRules": {"quantity": "data_volume_gb / 100 || 1"}},
      {"name": "End-User Training", "description": "Training sessions for migrated users", "baseHours": 2, "scalingFactors": ["user_count", "training_required"], "calculationRules": {"quantity": "user_count / 25 || 1", "included": "training_required"}}
    ]
  },
  {
    "name": "Testing and Validation",
    "description": "Pilot, validate and monitor the migrated workloads.",
    "phase": "Monitoring & Testing",
    "subservices": [
      {"name": "Pilot Testing", "description": "Pilot group migration and UAT", "baseHours": 6},
      {"name": "Migration Validation", "description": "Spot-check migrated mailboxes", "baseHours": 1, "scalingFactors": ["mailbox_count"], "calculationRules": {"quantity": "mailbox_count / 50 || 1"}},
      {"name": "Performance Monitoring", "description": "Track throughput and service health", "baseHours": 4},
      {"name": "Issue Remediation", "description": "Resolve migration defects", "baseHours": 6, "scalingFactors": ["complexity"], "calculationRules": {"multiplier": "complexity === 'high' ? 1.5 : 1.0"}}
    ]
  },
  {
    "name": "Project Closure",
    "description": "Handover, hypercare and formal project closeout.",
    "phase": "Closing",
    "subservices": [
      {"name": "Documentation Handover", "description": "As-built documentation", "baseHours": 4},
      {"name": "Knowledge Transfer", "description": "Admin knowledge transfer sessions", "baseHours": 3},
      {"name": "Hypercare Support", "description": "Post go-live support per site", "baseHours": 2, "scalingFactors": ["site_count"], "quantityDriver": "site_count"},
      {"name": "Project Closeout", "description": "Sign-off and lessons learned", "baseHours": 2}
    ]
  }
]`

const questionsReply = `{
  "questions": [
    {"mappingKey": "user_count", "text": "How many users will be migrated?", "type": "number", "defaultValue": 100, "calculationType": "quantity"},
    {"mappingKey": "mailbox_count", "text": "How many mailboxes need to be migrated?", "type": "number", "defaultValue": 100, "calculationType": "quantity"},
    {"mappingKey": "site_count", "text": "How many office locations are in scope?", "type": "number", "defaultValue": 1, "calculationType": "quantity"},
    {"mappingKey": "complexity", "text": "What is the overall environment complexity?", "type": "multiple_choice", "options": ["low", "medium", "high"], "defaultValue": "medium", "calculationType": "multiplier"}
  ]
}`

const contextQuestionsReply = `Sure! Additional questions:
{"questions": [
  {"text": "What is the target go-live timeline?", "type": "multiple_choice", "options": ["Under 1 month", "1-3 months", "3-6 months"], "defaultValue": "1-3 months", "category": "timeline"},
  {"text": "Which geographic regions are users located in?", "type": "multiple_choice", "options": ["Single region", "Multiple regions", "Global"], "defaultValue": "Single region", "category": "geography"},
  {"text": "Will ongoing managed support be required after go-live?", "type": "boolean", "defaultValue": false, "category": "support"},
]}`
