package sml

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// ParseFile reads and lowers a model file into its top-level nodes. Most
// files hold a single source_model block but the language does not forbid
// several.
func ParseFile(path string) ([]*Node, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse model file %s: %s", path, diags.Error())
	}
	return lowerFile(file, path)
}

// Parse lowers model source text into its top-level nodes. The filename is
// only used in ranges and error messages.
func Parse(src []byte, filename string) ([]*Node, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse model file %s: %s", filename, diags.Error())
	}
	return lowerFile(file, filename)
}

func lowerFile(file *hcl.File, filename string) ([]*Node, error) {
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("model file %s: not native HCL syntax", filename)
	}
	if len(body.Attributes) > 0 {
		for _, attr := range body.Attributes {
			return nil, fmt.Errorf("%s: unexpected top-level attribute %q", attr.SrcRange, attr.Name)
		}
	}
	nodes := make([]*Node, 0, len(body.Blocks))
	for _, block := range body.Blocks {
		n, err := lowerBlock(block)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// lowerBlock turns one hclsyntax block and its subtree into a Node. The
// single optional label becomes the "id" attribute; attribute expressions
// must be literal because model files carry data, not programs.
func lowerBlock(block *hclsyntax.Block) (*Node, error) {
	n := &Node{
		Tag:      block.Type,
		Attrs:    make(map[string]cty.Value, len(block.Body.Attributes)+1),
		DefRange: block.DefRange(),
	}
	switch len(block.Labels) {
	case 0:
	case 1:
		n.Attrs["id"] = cty.StringVal(block.Labels[0])
	default:
		return nil, fmt.Errorf("%s: block %q takes at most one label, got %d",
			block.DefRange(), block.Type, len(block.Labels))
	}
	for name, attr := range block.Body.Attributes {
		if name == "id" && len(block.Labels) == 1 {
			return nil, fmt.Errorf("%s: attribute %q conflicts with the block label", attr.SrcRange, name)
		}
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s: attribute %q must be a literal value: %s",
				attr.SrcRange, name, diags.Error())
		}
		n.Attrs[name] = val
	}
	for _, sub := range block.Body.Blocks {
		child, err := lowerBlock(sub)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}
