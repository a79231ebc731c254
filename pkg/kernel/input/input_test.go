package input

import (
	"strings"
	"testing"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

func TestReadCSVWithHeaderAndTypedColumns(t *testing.T) {
	rf := &schema.RuleFile{Input: schema.InputSpec{
		Format: schema.InputCSV,
		CSV: &schema.CSVSpec{
			HasHeader: true,
			Columns: []schema.CSVColumn{
				{Name: "age", Type: "int"},
				{Name: "active", Type: "bool"},
			},
		},
	}}
	data := "name,age,active\nAda,36,true\nGrace,85,false\n"

	records, err := Read(rf, strings.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["name"] != "Ada" {
		t.Errorf("name = %v", records[0]["name"])
	}
	if records[0]["age"] != int64(36) {
		t.Errorf("age = %v (%T)", records[0]["age"], records[0]["age"])
	}
	if records[1]["active"] != false {
		t.Errorf("active = %v", records[1]["active"])
	}
}

func TestReadCSVNoHeaderUsesColumnNames(t *testing.T) {
	rf := &schema.RuleFile{Input: schema.InputSpec{
		Format: schema.InputCSV,
		CSV: &schema.CSVSpec{
			HasHeader: false,
			Columns:   []schema.CSVColumn{{Name: "id", Type: "int"}, {Name: "label"}},
		},
	}}

	records, err := Read(rf, strings.NewReader("1,one\n2,two\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 2 || records[0]["id"] != int64(1) || records[0]["label"] != "one" {
		t.Fatalf("unexpected records: %#v", records)
	}
}

func TestReadJSONArrayRoot(t *testing.T) {
	rf := &schema.RuleFile{Input: schema.InputSpec{Format: schema.InputJSON, JSON: &schema.JSONSpec{}}}
	data := `[{"id": 1, "price": 9.99}, {"id": 2, "price": 1}]`

	records, err := Read(rf, strings.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["id"] != float64(1) {
		t.Errorf("id = %v (%T), expected float64", records[0]["id"], records[0]["id"])
	}
	if records[0]["price"] != 9.99 {
		t.Errorf("price = %v", records[0]["price"])
	}
}

func TestReadJSONWithRecordsPath(t *testing.T) {
	rf := &schema.RuleFile{Input: schema.InputSpec{
		Format: schema.InputJSON,
		JSON:   &schema.JSONSpec{RecordsPath: "data.items"},
	}}
	data := `{"data": {"items": [{"id": 1}, {"id": 2}, {"id": 3}]}, "meta": {"total": 3}}`

	records, err := Read(rf, strings.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
}

func TestReadJSONSingleObjectRoot(t *testing.T) {
	rf := &schema.RuleFile{Input: schema.InputSpec{Format: schema.InputJSON, JSON: &schema.JSONSpec{}}}
	data := `{"id": 1, "name": "solo"}`

	records, err := Read(rf, strings.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 1 || records[0]["name"] != "solo" {
		t.Fatalf("unexpected records: %#v", records)
	}
}

func TestReadJSONBadRecordsPathErrors(t *testing.T) {
	rf := &schema.RuleFile{Input: schema.InputSpec{
		Format: schema.InputJSON,
		JSON:   &schema.JSONSpec{RecordsPath: "nope.items"},
	}}
	_, err := Read(rf, strings.NewReader(`{"data": {}}`))
	if err == nil {
		t.Fatal("expected an error for unresolved records_path")
	}
}
