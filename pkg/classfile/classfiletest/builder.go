// Package classfiletest assembles small class files in memory for tests that
// need real class-file input without a Java compiler.
package classfiletest

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"github.com/daimatz/jbeans/pkg/classfile"
)

type member struct {
	flags     uint16
	name      uint16
	desc      uint16
	maxStack  uint16
	maxLocals uint16
	code      []byte
	handlers  []classfile.ExceptionHandler
}

// Builder accumulates a constant pool and members. Pool indices returned by
// the constant helpers can be embedded directly in bytecode.
type Builder struct {
	pool       [][]byte
	index      map[string]uint16
	access     uint16
	this       uint16
	super      uint16
	interfaces []uint16
	fields     []member
	methods    []member
}

// New starts a public class. Names may use dots or slashes. An empty super
// name produces a class without superclass (only valid for java.lang.Object).
func New(name, super string) *Builder {
	b := &Builder{
		index:  make(map[string]uint16),
		access: classfile.AccPublic | classfile.AccSuper,
	}
	b.this = b.Class(name)
	if super != "" {
		b.super = b.Class(super)
	}
	return b
}

// Access replaces the class access flags.
func (b *Builder) Access(flags uint16) *Builder {
	b.access = flags
	return b
}

// Implements adds directly implemented interfaces.
func (b *Builder) Implements(names ...string) *Builder {
	for _, n := range names {
		b.interfaces = append(b.interfaces, b.Class(n))
	}
	return b
}

// Field declares a field.
func (b *Builder) Field(flags uint16, name, desc string) *Builder {
	b.fields = append(b.fields, member{flags: flags, name: b.Utf8(name), desc: b.Utf8(desc)})
	return b
}

// Method declares a method. A nil code slice produces a method without a
// Code attribute.
func (b *Builder) Method(flags uint16, name, desc string, maxStack, maxLocals uint16, code []byte) *Builder {
	if code != nil {
		b.Utf8("Code")
	}
	b.methods = append(b.methods, member{
		flags:     flags,
		name:      b.Utf8(name),
		desc:      b.Utf8(desc),
		maxStack:  maxStack,
		maxLocals: maxLocals,
		code:      code,
	})
	return b
}

// Catch adds an exception table entry to the most recently declared method.
// An empty catchType catches everything.
func (b *Builder) Catch(startPC, endPC, handlerPC uint16, catchType string) *Builder {
	h := classfile.ExceptionHandler{StartPC: startPC, EndPC: endPC, HandlerPC: handlerPC}
	if catchType != "" {
		h.CatchType = b.Class(catchType)
	}
	m := &b.methods[len(b.methods)-1]
	m.handlers = append(m.handlers, h)
	return b
}

func (b *Builder) add(key string, entry []byte, slots int) uint16 {
	if idx, ok := b.index[key]; ok {
		return idx
	}
	idx := uint16(len(b.pool) + 1)
	b.pool = append(b.pool, entry)
	for i := 1; i < slots; i++ {
		b.pool = append(b.pool, nil)
	}
	b.index[key] = idx
	return idx
}

// Utf8 adds a CONSTANT_Utf8 entry.
func (b *Builder) Utf8(s string) uint16 {
	entry := []byte{classfile.TagUtf8}
	entry = binary.BigEndian.AppendUint16(entry, uint16(len(s)))
	entry = append(entry, s...)
	return b.add("utf8:"+s, entry, 1)
}

// Class adds a CONSTANT_Class entry.
func (b *Builder) Class(name string) uint16 {
	name = strings.ReplaceAll(name, ".", "/")
	n := b.Utf8(name)
	return b.add("class:"+name, u16Entry(classfile.TagClass, n), 1)
}

// String adds a CONSTANT_String entry.
func (b *Builder) String(s string) uint16 {
	n := b.Utf8(s)
	return b.add("string:"+s, u16Entry(classfile.TagString, n), 1)
}

// Integer adds a CONSTANT_Integer entry.
func (b *Builder) Integer(v int32) uint16 {
	entry := binary.BigEndian.AppendUint32([]byte{classfile.TagInteger}, uint32(v))
	return b.add("int:"+string(entry), entry, 1)
}

// Double adds a CONSTANT_Double entry, which takes two pool slots.
func (b *Builder) Double(v float64) uint16 {
	entry := binary.BigEndian.AppendUint64([]byte{classfile.TagDouble}, math.Float64bits(v))
	return b.add("double:"+string(entry), entry, 2)
}

// Methodref adds a CONSTANT_Methodref entry.
func (b *Builder) Methodref(class, name, desc string) uint16 {
	return b.ref(classfile.TagMethodref, class, name, desc)
}

// Fieldref adds a CONSTANT_Fieldref entry.
func (b *Builder) Fieldref(class, name, desc string) uint16 {
	return b.ref(classfile.TagFieldref, class, name, desc)
}

func (b *Builder) ref(tag uint8, class, name, desc string) uint16 {
	c := b.Class(class)
	nat := b.add("nat:"+name+":"+desc,
		append(u16Entry(classfile.TagNameAndType, b.Utf8(name)), u16(b.Utf8(desc))...), 1)
	entry := append(u16Entry(tag, c), u16(nat)...)
	return b.add(string(entry), entry, 1)
}

// Bytes serializes the class file.
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.BigEndian, v) }

	w(uint32(0xCAFEBABE))
	w(uint16(0))  // minor
	w(uint16(52)) // major: Java 8
	w(uint16(len(b.pool) + 1))
	for _, entry := range b.pool {
		buf.Write(entry) // nil for the second slot of a double
	}
	w(b.access)
	w(b.this)
	w(b.super)
	w(uint16(len(b.interfaces)))
	for _, i := range b.interfaces {
		w(i)
	}
	for _, members := range [][]member{b.fields, b.methods} {
		w(uint16(len(members)))
		for _, m := range members {
			w(m.flags)
			w(m.name)
			w(m.desc)
			if m.code == nil {
				w(uint16(0))
				continue
			}
			w(uint16(1))
			w(b.index["utf8:Code"])
			w(uint32(2 + 2 + 4 + len(m.code) + 2 + 8*len(m.handlers) + 2))
			w(m.maxStack)
			w(m.maxLocals)
			w(uint32(len(m.code)))
			buf.Write(m.code)
			w(uint16(len(m.handlers)))
			for _, h := range m.handlers {
				w(h)
			}
			w(uint16(0)) // attributes
		}
	}
	w(uint16(0)) // class attributes
	return buf.Bytes()
}

// U16 encodes a pool index or branch offset as a big-endian operand.
func U16(v uint16) []byte {
	return u16(v)
}

// Code concatenates bytecode fragments.
func Code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func u16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func u16Entry(tag uint8, v uint16) []byte {
	return append([]byte{tag}, u16(v)...)
}
