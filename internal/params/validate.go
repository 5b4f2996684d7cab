package params

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaCUE string

// validateSchema checks raw spec file bytes against the embedded CUE schema.
// Violations come back as a *SpecError with the CUE positions in the message.
func validateSchema(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile spec schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Spec"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup spec schema: %w", err)
	}

	file, err := cueyaml.Extract("spec.yaml", data)
	if err != nil {
		return &SpecError{Message: fmt.Sprintf("parse yaml: %v", err)}
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return &SpecError{Message: fmt.Sprintf("build yaml document: %v", err)}
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &SpecError{Message: cueErrorDetail(err)}
	}
	return nil
}

// cueErrorDetail flattens a CUE error list into one message with positions.
func cueErrorDetail(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%v", e)
	}
	return msg
}
