package usecase

import (
	"context"
	"fmt"
	"sync"

	"storage-gateway/internal/shared/eventbus"
	"storage-gateway/internal/shared/logger"
	"storage-gateway/internal/storage/domain/model"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
)

// Classifier decides whether a raw record behaves as a folder, using the
// descriptor's declarative rule. The plain path is the folder-type-code
// table; providers whose folder semantics outgrew a flat code set declare a
// CEL predicate instead, compiled once at registration time.
//
// The classification rule is the single authority. When a backend's own
// folder hint disagrees with the rule, the mismatch is flagged instead of
// silently reconciled, so the table can be updated deliberately.
type Classifier struct {
	env *cel.Env
	log logger.Logger
	bus eventbus.EventBusInterface

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewClassifier creates a classifier with a CEL environment exposing the
// record's native type code and raw attribute map.
func NewClassifier(log logger.Logger, bus eventbus.EventBusInterface) (*Classifier, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("code", decls.Int),
			decls.NewVar("raw", decls.Dyn),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create classification environment: %w", err)
	}
	if log == nil {
		log = logger.NewLogger()
	}
	return &Classifier{
		env:      env,
		log:      log.WithComponent("classifier"),
		bus:      bus,
		programs: make(map[string]cel.Program),
	}, nil
}

// CompileRule pre-compiles the descriptor's CEL predicate, if any. Called
// once per provider during registration; a compile failure is fatal at
// startup like any other bad descriptor.
func (c *Classifier) CompileRule(desc *model.ProviderDescriptor) error {
	if desc.FolderTypeExpr == "" {
		return nil
	}

	ast, issues := c.env.Compile(desc.FolderTypeExpr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("provider %q: classification rule compile error: %w", desc.ShortName, issues.Err())
	}
	program, err := c.env.Program(ast)
	if err != nil {
		return fmt.Errorf("provider %q: classification rule program error: %w", desc.ShortName, err)
	}

	c.mu.Lock()
	c.programs[desc.ShortName] = program
	c.mu.Unlock()
	return nil
}

// Classify maps a raw record to file or folder per the provider's rule and
// flags any disagreement with the backend's own folder hint.
func (c *Classifier) Classify(ctx context.Context, desc *model.ProviderDescriptor, raw *model.RawRecord) model.EntityKind {
	isFolder := c.matches(desc, raw)

	if raw.FolderHint != isFolder {
		c.log.WithProvider(desc.ShortName).Warnf(
			"classification mismatch for %s: table says folder=%v, backend hints folder=%v (type code %d)",
			raw.Path, isFolder, raw.FolderHint, raw.TypeCode)
		if c.bus != nil {
			c.bus.PublishAndForget(ctx, eventbus.NewBasicEventWithSource(
				eventbus.EventTypeClassificationMismatch,
				map[string]interface{}{
					"provider":  desc.ShortName,
					"path":      raw.Path,
					"type_code": raw.TypeCode,
					"table":     isFolder,
					"backend":   raw.FolderHint,
				},
				"classifier",
			))
		}
	}

	if isFolder {
		return model.KindFolder
	}
	return model.KindFile
}

// matches evaluates the provider's rule: CEL predicate when declared,
// otherwise the folder-type-code table.
func (c *Classifier) matches(desc *model.ProviderDescriptor, raw *model.RawRecord) bool {
	c.mu.RLock()
	program, hasExpr := c.programs[desc.ShortName]
	c.mu.RUnlock()

	if !hasExpr {
		return desc.IsFolderCode(raw.TypeCode)
	}

	vars := map[string]interface{}{
		"code": int64(raw.TypeCode),
		"raw":  rawVars(raw),
	}
	out, _, err := program.Eval(vars)
	if err != nil {
		c.log.WithProvider(desc.ShortName).Errorf(
			"classification rule evaluation failed for %s, falling back to code table: %v", raw.Path, err)
		return desc.IsFolderCode(raw.TypeCode)
	}
	result, ok := out.Value().(bool)
	if !ok {
		c.log.WithProvider(desc.ShortName).Errorf(
			"classification rule for %s did not return a boolean, falling back to code table", raw.Path)
		return desc.IsFolderCode(raw.TypeCode)
	}
	return result
}

// rawVars exposes the record to CEL as a plain map
func rawVars(raw *model.RawRecord) map[string]interface{} {
	vars := map[string]interface{}{
		"name":       raw.Name,
		"path":       raw.Path,
		"size":       raw.Size,
		"type_code":  int64(raw.TypeCode),
		"revision":   raw.Revision,
		"attributes": raw.Attributes,
	}
	return vars
}
