package shader

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// Validate compiles processed WGSL to naga IR. A source that fails to parse or lower is
// rejected; findings from IR validation are returned for the caller to report, since they do
// not always stop a driver from accepting the module.
//
// Parameters:
//   - key: the shader key, used in error messages
//   - source: the processed WGSL
//
// Returns:
//   - []ir.ValidationError: non-fatal validation findings
//   - error: an error if the source does not parse or lower
func Validate(key, source string) ([]ir.ValidationError, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	findings, err := naga.Validate(module)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	return findings, nil
}
