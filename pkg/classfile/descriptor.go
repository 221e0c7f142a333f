package classfile

import (
	"fmt"
	"strings"
)

var primitiveDescriptors = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// MethodDescriptor is a parsed method descriptor such as "(ILjava/lang/String;)V".
// Types are given as Java binary names: "int", "java.lang.String", "[I".
type MethodDescriptor struct {
	Params []string
	Return string
}

// ParseMethodDescriptor splits a method descriptor into parameter and return types.
func ParseMethodDescriptor(descriptor string) (*MethodDescriptor, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}
	end := strings.IndexByte(descriptor, ')')
	if end == -1 {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}

	md := &MethodDescriptor{}
	params := descriptor[1:end]
	for len(params) > 0 {
		name, n, err := parseFieldType(params)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", descriptor, err)
		}
		if name == "void" {
			return nil, fmt.Errorf("%s: void parameter", descriptor)
		}
		md.Params = append(md.Params, name)
		params = params[n:]
	}

	ret, n, err := parseFieldType(descriptor[end+1:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", descriptor, err)
	}
	if end+1+n != len(descriptor) {
		return nil, fmt.Errorf("trailing data in method descriptor: %s", descriptor)
	}
	md.Return = ret
	return md, nil
}

// FieldTypeName converts a single field descriptor to a Java binary name.
func FieldTypeName(descriptor string) (string, error) {
	name, n, err := parseFieldType(descriptor)
	if err != nil {
		return "", err
	}
	if n != len(descriptor) {
		return "", fmt.Errorf("trailing data in field descriptor: %s", descriptor)
	}
	return name, nil
}

// SlotCount returns the number of local variable slots a value of the named
// type occupies (long and double take two).
func SlotCount(typeName string) int {
	if typeName == "long" || typeName == "double" {
		return 2
	}
	return 1
}

func parseFieldType(s string) (string, int, error) {
	if s == "" {
		return "", 0, fmt.Errorf("empty type descriptor")
	}
	switch s[0] {
	case 'L':
		end := strings.IndexByte(s, ';')
		if end == -1 {
			return "", 0, fmt.Errorf("unterminated class type in %q", s)
		}
		return strings.ReplaceAll(s[1:end], "/", "."), end + 1, nil
	case '[':
		dims := 0
		for dims < len(s) && s[dims] == '[' {
			dims++
		}
		if dims == len(s) {
			return "", 0, fmt.Errorf("array without element type in %q", s)
		}
		_, n, err := parseFieldType(s[dims:])
		if err != nil {
			return "", 0, err
		}
		// Array binary names keep the descriptor form with dots.
		return strings.ReplaceAll(s[:dims+n], "/", "."), dims + n, nil
	default:
		name, ok := primitiveDescriptors[s[0]]
		if !ok {
			return "", 0, fmt.Errorf("invalid type descriptor char '%c'", s[0])
		}
		return name, 1, nil
	}
}
