package classfile

import (
	"reflect"
	"testing"
)

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		desc       string
		wantParams []string
		wantReturn string
	}{
		{"()V", nil, "void"},
		{"(II)I", []string{"int", "int"}, "int"},
		{"(Ljava/lang/String;J)Ljava/lang/Object;", []string{"java.lang.String", "long"}, "java.lang.Object"},
		{"([I[[Ljava/lang/String;)Z", []string{"[I", "[[Ljava.lang.String;"}, "boolean"},
		{"(CBSFD)[B", []string{"char", "byte", "short", "float", "double"}, "[B"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			md, err := ParseMethodDescriptor(tt.desc)
			if err != nil {
				t.Fatalf("ParseMethodDescriptor(%q): %v", tt.desc, err)
			}
			if !reflect.DeepEqual(md.Params, tt.wantParams) {
				t.Errorf("params: got %v, want %v", md.Params, tt.wantParams)
			}
			if md.Return != tt.wantReturn {
				t.Errorf("return: got %q, want %q", md.Return, tt.wantReturn)
			}
		})
	}
}

func TestParseMethodDescriptorInvalid(t *testing.T) {
	for _, desc := range []string{"", "II)V", "(I", "(Q)V", "(Ljava/lang/String)V", "(V)V", "()", "()VV", "([)V"} {
		if _, err := ParseMethodDescriptor(desc); err == nil {
			t.Errorf("ParseMethodDescriptor(%q): expected error", desc)
		}
	}
}

func TestFieldTypeName(t *testing.T) {
	got, err := FieldTypeName("Ljava/util/List;")
	if err != nil || got != "java.util.List" {
		t.Errorf("FieldTypeName: got %q, %v", got, err)
	}
	if _, err := FieldTypeName("II"); err == nil {
		t.Error("expected error for trailing data")
	}
	if SlotCount("long") != 2 || SlotCount("double") != 2 || SlotCount("int") != 1 {
		t.Error("SlotCount mismatch")
	}
}
