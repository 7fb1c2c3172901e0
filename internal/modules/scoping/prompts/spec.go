package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

type PromptName string

const (
	PromptResearch         PromptName = "research"
	PromptResearchEnhance  PromptName = "research_enhance"
	PromptServices         PromptName = "services"
	PromptFactorQuestions  PromptName = "factor_questions"
	PromptContextQuestions PromptName = "context_questions"
)

// Spec is the declaration format used in RegisterAll.
type Spec struct {
	Name    PromptName
	Version int
	// System and User are plain strings or go templates over Input.
	System     string
	User       string
	Validators []Validator
}

type Template struct {
	Name     PromptName
	Version  int
	System   func(Input) string
	User     func(Input) string
	Validate Validator
}

type Prompt struct {
	Name    string
	Version int
	System  string
	User    string
}

var (
	mu           sync.RWMutex
	registry     = map[PromptName]Template{}
	registerOnce sync.Once
)

// MakeTemplate compiles a Spec into a Template.
func MakeTemplate(s Spec) (Template, error) {
	if strings.TrimSpace(string(s.Name)) == "" {
		return Template{}, fmt.Errorf("missing prompt name")
	}
	if s.Version <= 0 {
		return Template{}, fmt.Errorf("invalid version for %s", s.Name)
	}
	sysT, err := template.New("system").Option("missingkey=zero").Parse(s.System)
	if err != nil {
		return Template{}, fmt.Errorf("%s system template parse: %w", s.Name, err)
	}
	userT, err := template.New("user").Option("missingkey=zero").Parse(s.User)
	if err != nil {
		return Template{}, fmt.Errorf("%s user template parse: %w", s.Name, err)
	}
	render := func(t *template.Template, in Input) string {
		var b bytes.Buffer
		_ = t.Execute(&b, in)
		return strings.TrimSpace(b.String())
	}
	tt := Template{
		Name:    s.Name,
		Version: s.Version,
		System:  func(in Input) string { return render(sysT, in) },
		User:    func(in Input) string { return render(userT, in) },
	}
	if len(s.Validators) > 0 {
		tt.Validate = func(in Input) error {
			for _, v := range s.Validators {
				if v == nil {
					continue
				}
				if err := v(in); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return tt, nil
}

func Register(t Template) {
	mu.Lock()
	defer mu.Unlock()
	registry[t.Name] = t
}

// RegisterSpec panics on a malformed spec; specs are compiled at startup.
func RegisterSpec(s Spec) {
	t, err := MakeTemplate(s)
	if err != nil {
		panic(err)
	}
	Register(t)
}

// Build renders the named prompt. Extra instructions in the input are
// appended to the user message.
func Build(name PromptName, in Input) (Prompt, error) {
	registerOnce.Do(RegisterAll)
	mu.RLock()
	t, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", string(name))
	}
	if t.Validate != nil {
		if err := t.Validate(in); err != nil {
			return Prompt{}, fmt.Errorf("%s: %w", string(name), err)
		}
	}
	user := strings.TrimSpace(t.User(in))
	if extra := strings.TrimSpace(in.Extra); extra != "" {
		user += "\n\nAdditional instructions:\n" + extra
	}
	return Prompt{
		Name:    string(t.Name),
		Version: t.Version,
		System:  strings.TrimSpace(t.System(in)),
		User:    user,
	}, nil
}
