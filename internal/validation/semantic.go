package validation

import (
	"errors"
	"fmt"

	"github.com/rendis/tileflow/internal/expressions"
	"github.com/rendis/tileflow/pkg/schema"
)

// ConditionCompiler compile-checks switch conditions. *expressions.Registry implements it.
type ConditionCompiler interface {
	Compile(lang, expression string) error
}

// walkElements visits every element depth first, nested branches included.
// Returning false from fn stops the walk.
func walkElements(elems []schema.ElementDefinition, path string, fn func(elem *schema.ElementDefinition, path string) bool) bool {
	for i := range elems {
		elem := &elems[i]
		at := fmt.Sprintf("%s[%d]", path, i)
		if !fn(elem, at) {
			return false
		}
		if elem.Yes != nil && !walkElements(elem.Yes.Elements, at+".yes.elements", fn) {
			return false
		}
		if elem.No != nil && !walkElements(elem.No.Elements, at+".no.elements", fn) {
			return false
		}
	}
	return true
}

// elementPaths maps each element id to its document path.
func elementPaths(def *schema.WorkflowDefinition) map[string]string {
	paths := make(map[string]string)
	walkElements(def.Elements, "elements", func(elem *schema.ElementDefinition, path string) bool {
		if _, ok := paths[elem.ID]; !ok {
			paths[elem.ID] = path
		}
		return true
	})
	return paths
}

// validateSemantic checks what the schema cannot: conditions compile in their
// language, goto targets exist, titles use known interpolation namespaces and
// element attributes match their kind.
func validateSemantic(def *schema.WorkflowDefinition, conditions ConditionCompiler) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	paths := elementPaths(def)

	if err := expressions.CheckTemplate(def.Title); err != nil {
		result.AddWarning("title", schema.ErrCodeExpression, templateMessage(err))
	}

	walkElements(def.Elements, "elements", func(elem *schema.ElementDefinition, path string) bool {
		validateElementSemantic(elem, path, paths, conditions, result)
		return true
	})
	return result
}

func validateElementSemantic(elem *schema.ElementDefinition, path string, paths map[string]string, conditions ConditionCompiler, result *schema.ValidationResult) {
	if err := expressions.CheckTemplate(elem.Title); err != nil {
		result.AddWarning(path+".title", schema.ErrCodeExpression, templateMessage(err))
	}

	switch elem.Kind() {
	case schema.KindSwitch:
		validateSwitch(elem, path, paths, conditions, result)
		return
	case schema.KindStatus:
		if elem.Status == "" {
			result.AddWarning(path+".status", schema.ErrCodeValidation,
				fmt.Sprintf("status element %q sets no status value", elem.ID))
		}
	case schema.KindAction:
		if elem.Action == "" {
			result.AddWarning(path+".action", schema.ErrCodeValidation,
				fmt.Sprintf("action element %q names no action", elem.ID))
		}
	}

	if elem.Yes != nil || elem.No != nil {
		result.AddError(path, schema.ErrCodeValidation,
			fmt.Sprintf("element %q of type %s cannot have branches", elem.ID, elem.Kind()))
	}
	if elem.Condition != "" || elem.Lang != "" {
		result.AddWarning(path+".condition", schema.ErrCodeValidation,
			fmt.Sprintf("condition on %s element %q is ignored", elem.Kind(), elem.ID))
	}
}

func validateSwitch(elem *schema.ElementDefinition, path string, paths map[string]string, conditions ConditionCompiler, result *schema.ValidationResult) {
	if conditions != nil {
		if err := conditions.Compile(elem.ConditionLang(), elem.Condition); err != nil {
			result.AddError(path+".condition", schema.ErrCodeExpression,
				fmt.Sprintf("%s condition does not compile: %s", elem.ConditionLang(), causeMessage(err)))
		}
	}

	for _, br := range []struct {
		label  string
		branch *schema.Branch
	}{{"yes", elem.Yes}, {"no", elem.No}} {
		if br.branch == nil || br.branch.GoTo == "" {
			continue
		}
		if _, ok := paths[br.branch.GoTo]; !ok {
			result.AddError(path+"."+br.label+".goto", schema.ErrCodeInvalidReference,
				fmt.Sprintf("references non-existent element %q", br.branch.GoTo))
		}
	}

	if plain(elem.Yes) && plain(elem.No) {
		result.AddWarning(path, schema.ErrCodeValidation,
			fmt.Sprintf("switch %q has two empty branches; both outcomes continue at the same element", elem.ID))
	}
}

// plain reports whether a branch is missing or merges back without elements.
func plain(br *schema.Branch) bool {
	return br == nil || (len(br.Elements) == 0 && br.GoTo == "" && !br.End)
}

func templateMessage(err error) string {
	return "title interpolation: " + causeMessage(err)
}

func causeMessage(err error) string {
	var tfErr *schema.TileflowError
	if errors.As(err, &tfErr) {
		return tfErr.Message
	}
	return err.Error()
}
