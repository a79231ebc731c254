package schema

import "testing"

func TestLoadBasicCSVRule(t *testing.T) {
	src := []byte(`
version: 1
input:
  format: csv
  csv:
    has_header: true
    delimiter: ","
mappings:
  - target: id
    source: id
    value_type: int
  - target: name
    source: name
    value_type: string
`)
	rf, errs, err := Load(src, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected structural errors: %v", errs)
	}
	if rf.Version != 1 {
		t.Errorf("Version = %d, want 1", rf.Version)
	}
	if rf.Input.Format != InputCSV || rf.Input.CSV == nil {
		t.Fatalf("Input = %+v, want csv section", rf.Input)
	}
	if !rf.Input.CSV.HasHeader || rf.Input.CSV.Delimiter != "," {
		t.Errorf("CSV spec = %+v", rf.Input.CSV)
	}
	if len(rf.Mappings) != 2 {
		t.Fatalf("len(Mappings) = %d, want 2", len(rf.Mappings))
	}
	if rf.Mappings[0].Target != "id" || rf.Mappings[0].Source != "id" {
		t.Errorf("Mappings[0] = %+v", rf.Mappings[0])
	}
}

func TestLoadUnknownKeyReported(t *testing.T) {
	src := []byte(`
version: 1
input:
  format: json
bogus: true
mappings: []
`)
	_, errs, err := Load(src, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	found := false
	for _, e := range errs {
		if e.Code == "UnknownKey" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected UnknownKey error, got %v", errs)
	}
}

func TestLoadExprChain(t *testing.T) {
	src := []byte(`
version: 1
input:
  format: json
mappings:
  - target: name
    expr:
      chain:
        - "@input.name"
        - {op: trim, args: []}
        - {op: uppercase, args: []}
`)
	rf, errs, err := Load(src, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	chain, ok := rf.Mappings[0].Expr.(*ChainExpr)
	if !ok {
		t.Fatalf("Expr = %T, want *ChainExpr", rf.Mappings[0].Expr)
	}
	if len(chain.Chain) != 3 {
		t.Fatalf("len(Chain) = %d, want 3", len(chain.Chain))
	}
	ref, ok := chain.Chain[0].(*RefExpr)
	if !ok || ref.Namespace != NsInput || ref.Path != "name" {
		t.Errorf("Chain[0] = %+v", chain.Chain[0])
	}
	op, ok := chain.Chain[1].(*OpExpr)
	if !ok || op.Op != "trim" {
		t.Errorf("Chain[1] = %+v", chain.Chain[1])
	}
}

func TestLoadV2PipeAndShorthand(t *testing.T) {
	src := []byte(`
version: 2
input:
  format: json
mappings:
  - target: values
    expr:
      - "@input.items"
      - map:
          - "@item"
          - {op: get, args: ["value"]}
  - target: ok
    when: {eq: ["@input.status", "lit:active"]}
    value: true
`)
	rf, errs, err := Load(src, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	pipe, ok := rf.Mappings[0].Expr.(*PipeExpr)
	if !ok {
		t.Fatalf("Expr = %T, want *PipeExpr", rf.Mappings[0].Expr)
	}
	if len(pipe.Steps) != 1 || pipe.Steps[0].StepKind != PipeMap {
		t.Fatalf("pipe steps = %+v", pipe.Steps)
	}

	when, ok := rf.Mappings[1].When.(*OpExpr)
	if !ok || when.Op != "eq" || len(when.Args) != 2 {
		t.Fatalf("When = %+v, want eq op with 2 args", rf.Mappings[1].When)
	}
	lit, ok := when.Args[1].(*LiteralExpr)
	if !ok || lit.Value != "active" {
		t.Errorf("Args[1] = %+v, want literal \"active\"", when.Args[1])
	}
}

func TestLoadSingleElementPipeStaysPipe(t *testing.T) {
	src := []byte(`
version: 2
input:
  format: json
mappings:
  - target: x
    expr: ["@input.x"]
`)
	rf, _, err := Load(src, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	pipe, ok := rf.Mappings[0].Expr.(*PipeExpr)
	if !ok {
		t.Fatalf("Expr = %T, want *PipeExpr (single-element array must stay a pipe)", rf.Mappings[0].Expr)
	}
	if len(pipe.Steps) != 0 {
		t.Errorf("Steps = %v, want none", pipe.Steps)
	}
	if _, ok := pipe.Start.(*RefExpr); !ok {
		t.Errorf("Start = %T, want *RefExpr", pipe.Start)
	}
}

func TestLoadFinalize(t *testing.T) {
	src := []byte(`
version: 2
input:
  format: json
mappings: []
finalize:
  filter: {eq: ["@item.keep", true]}
  sort: {by: "name", order: desc}
  limit: 10
  offset: 2
`)
	rf, errs, err := Load(src, "")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if rf.Finalize == nil {
		t.Fatal("Finalize is nil")
	}
	if rf.Finalize.Sort == nil || rf.Finalize.Sort.By != "name" || rf.Finalize.Sort.Order != "desc" {
		t.Errorf("Sort = %+v", rf.Finalize.Sort)
	}
	if rf.Finalize.Limit == nil || *rf.Finalize.Limit != 10 {
		t.Errorf("Limit = %v, want 10", rf.Finalize.Limit)
	}
	if rf.Finalize.Offset == nil || *rf.Finalize.Offset != 2 {
		t.Errorf("Offset = %v, want 2", rf.Finalize.Offset)
	}
}

func TestLoadRejectsNonMappingRoot(t *testing.T) {
	_, _, err := Load([]byte("- 1\n- 2\n"), "")
	if err == nil {
		t.Error("expected error for non-mapping root")
	}
}
