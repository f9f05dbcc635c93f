// Package navigation resolves and walks the graph of navigation steps that
// lead from the landing page to any screen of the application.
//
// Steps are registered once into an explicit Registry at start-up. A Navigator
// bound to a browser driver then walks a step's prerequisite chain root first,
// running every step action under a retry policy.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
	"github.com/SatelliteQE/airgun-sub001/pkg/models"
	"github.com/SatelliteQE/airgun-sub001/pkg/view"
)

var (
	ErrUnknownStep        = errors.New("unknown navigation step")
	ErrDuplicateStep      = errors.New("navigation step already registered")
	ErrInvalidStep        = errors.New("invalid navigation step")
	ErrCyclicPrerequisite = errors.New("cyclic navigation prerequisites")
	ErrViewType           = errors.New("unexpected view type")
)

// UnknownStepError reports a request for a step nobody registered.
type UnknownStepError struct {
	Entity string
	Step   string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("no navigation step %q registered for entity %q", e.Step, e.Entity)
}

func (e *UnknownStepError) Is(target error) bool {
	return target == ErrUnknownStep
}

// Params are the keyword parameters handed to every step of a chain, such as
// the name of the entity to open.
type Params map[string]string

// Get returns the value of key, or "" when absent.
func (p Params) Get(key string) string {
	return p[key]
}

// StepContext is what a step action works with.
type StepContext struct {
	Driver browser.Driver
	Menu   *Menu
	Params Params
	Logger *zap.SugaredLogger
}

// Action performs the UI interaction that takes the browser to a step's screen.
type Action func(ctx context.Context, sc StepContext) error

// Probe reports whether the browser already shows a step's screen.
type Probe func(ctx context.Context, sc StepContext) (bool, error)

// Step is one node of the navigation graph. A nil Prerequisite marks a root
// landing page; a prerequisite with an empty Entity refers to the step's own
// entity.
type Step struct {
	Entity       string
	Name         string
	Prerequisite *models.StepRef
	View         view.Factory
	// ViewName is the name View's views report. Listings use it so they
	// never have to build a view without a browser.
	ViewName string
	Action   Action
	// AmIHere is optional. When it reports true the step and its
	// prerequisites are skipped.
	AmIHere Probe
}

// Ref returns the key the step is registered under.
func (s Step) Ref() models.StepRef {
	return models.StepRef{Entity: s.Entity, Step: s.Name}
}

func (s Step) prerequisite() (models.StepRef, bool) {
	if s.Prerequisite == nil {
		return models.StepRef{}, false
	}
	ref := *s.Prerequisite
	if ref.Entity == "" {
		ref.Entity = s.Entity
	}
	return ref, true
}

// Requires is a shorthand for a prerequisite reference.
func Requires(entity, step string) *models.StepRef {
	return &models.StepRef{Entity: entity, Step: step}
}

// Registry maps (entity, step) to steps. Entries are only ever added.
type Registry struct {
	mu    sync.RWMutex
	steps map[models.StepRef]Step
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[models.StepRef]Step)}
}

// Register adds s. Prerequisites may be registered later; they are checked
// when a chain is resolved.
func (r *Registry) Register(s Step) error {
	switch {
	case s.Entity == "" || s.Name == "":
		return fmt.Errorf("%w: entity and name are required", ErrInvalidStep)
	case s.Action == nil:
		return fmt.Errorf("%w: %s has no action", ErrInvalidStep, s.Ref())
	case s.View == nil:
		return fmt.Errorf("%w: %s has no view", ErrInvalidStep, s.Ref())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.steps[s.Ref()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStep, s.Ref())
	}
	r.steps[s.Ref()] = s
	return nil
}

// MustRegister registers every step and panics on the first error. It is meant
// for start-up wiring.
func (r *Registry) MustRegister(steps ...Step) {
	for _, s := range steps {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the step registered for (entity, step).
func (r *Registry) Lookup(entity, step string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[models.StepRef{Entity: entity, Step: step}]
	if !ok {
		return Step{}, &UnknownStepError{Entity: entity, Step: step}
	}
	return s, nil
}

// Resolve returns the chain leading to (entity, step), root first and the
// requested step last.
func (r *Registry) Resolve(entity, step string) ([]Step, error) {
	leaf, err := r.Lookup(entity, step)
	if err != nil {
		return nil, err
	}

	chain := []Step{leaf}
	seen := map[models.StepRef]bool{leaf.Ref(): true}
	for cur := leaf; ; {
		ref, ok := cur.prerequisite()
		if !ok {
			break
		}
		if seen[ref] {
			return nil, fmt.Errorf("%w: %s is reached again from %s", ErrCyclicPrerequisite, ref, cur.Ref())
		}
		next, err := r.Lookup(ref.Entity, ref.Step)
		if err != nil {
			return nil, fmt.Errorf("prerequisite of %s: %w", cur.Ref(), err)
		}
		seen[ref] = true
		chain = append(chain, next)
		cur = next
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Steps describes every registered step, sorted by entity then step name.
// Steps whose chain cannot be resolved are listed with an empty chain.
func (r *Registry) Steps() []models.StepInfo {
	r.mu.RLock()
	refs := make([]models.StepRef, 0, len(r.steps))
	for ref := range r.steps {
		refs = append(refs, ref)
	}
	r.mu.RUnlock()

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Entity != refs[j].Entity {
			return refs[i].Entity < refs[j].Entity
		}
		return refs[i].Step < refs[j].Step
	})

	out := make([]models.StepInfo, 0, len(refs))
	for _, ref := range refs {
		s, _ := r.Lookup(ref.Entity, ref.Step)
		info := models.StepInfo{Entity: ref.Entity, Step: ref.Step}
		if pre, ok := s.prerequisite(); ok {
			info.Prerequisite = &pre
		}
		info.View = s.ViewName
		if chain, err := r.Resolve(ref.Entity, ref.Step); err == nil {
			for _, c := range chain {
				info.Chain = append(info.Chain, c.Ref())
			}
		}
		out = append(out, info)
	}
	return out
}

// Len returns the number of registered steps.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}
