package vm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Primitive types.
var (
	BooleanType *Class
	ByteType    *Class
	CharType    *Class
	ShortType   *Class
	IntType     *Class
	LongType    *Class
	FloatType   *Class
	DoubleType  *Class
	VoidType    *Class
)

// Bootstrap classes of java.lang, shared by every Registry.
var (
	ObjectClass       *Class
	ClassClass        *Class
	CharSequenceClass *Class
	ComparableClass   *Class
	CloneableClass    *Class
	SerializableClass *Class
	NumberClass       *Class
	BooleanClass      *Class
	ByteClass         *Class
	CharacterClass    *Class
	ShortClass        *Class
	IntegerClass      *Class
	LongClass         *Class
	FloatClass        *Class
	DoubleClass       *Class
	StringClass       *Class

	ThrowableClass                      *Class
	ExceptionClass                      *Class
	RuntimeExceptionClass               *Class
	ErrorClass                          *Class
	IllegalArgumentExceptionClass       *Class
	NumberFormatExceptionClass          *Class
	IllegalStateExceptionClass          *Class
	NullPointerExceptionClass           *Class
	ClassCastExceptionClass             *Class
	ArithmeticExceptionClass            *Class
	IndexOutOfBoundsExceptionClass      *Class
	ArrayIndexOutOfBoundsExceptionClass *Class
	NegativeArraySizeExceptionClass     *Class
	UnsupportedOperationExceptionClass  *Class
	ReflectiveOperationExceptionClass   *Class
	ClassNotFoundExceptionClass         *Class
	IllegalAccessExceptionClass         *Class
	InstantiationExceptionClass         *Class
	NoSuchMethodExceptionClass          *Class
	NoSuchFieldExceptionClass           *Class
	AbstractMethodErrorClass            *Class
	StackOverflowErrorClass             *Class
)

var bootstrapClasses []*Class

func init() {
	BooleanType = newPrimitive("boolean", false)
	ByteType = newPrimitive("byte", int8(0))
	CharType = newPrimitive("char", uint16(0))
	ShortType = newPrimitive("short", int16(0))
	IntType = newPrimitive("int", int32(0))
	LongType = newPrimitive("long", int64(0))
	FloatType = newPrimitive("float", float32(0))
	DoubleType = newPrimitive("double", float64(0))
	VoidType = newPrimitive("void", nil)

	ObjectClass = NewClass("java.lang.Object", nil)
	SerializableClass = NewInterface("java.io.Serializable")
	CloneableClass = NewInterface("java.lang.Cloneable")
	ComparableClass = NewInterface("java.lang.Comparable")
	CharSequenceClass = NewInterface("java.lang.CharSequence")
	ClassClass = NewClass("java.lang.Class", ObjectClass, SerializableClass)
	NumberClass = NewClass("java.lang.Number", ObjectClass, SerializableClass)
	NumberClass.Modifiers |= Abstract
	StringClass = NewClass("java.lang.String", ObjectClass, SerializableClass, ComparableClass, CharSequenceClass)

	wrap := func(name string, prim *Class, super *Class) *Class {
		c := NewClass(name, super, SerializableClass, ComparableClass)
		c.wrapper = prim
		prim.wrapper = c
		return c
	}
	BooleanClass = wrap("java.lang.Boolean", BooleanType, ObjectClass)
	CharacterClass = wrap("java.lang.Character", CharType, ObjectClass)
	ByteClass = wrap("java.lang.Byte", ByteType, NumberClass)
	ShortClass = wrap("java.lang.Short", ShortType, NumberClass)
	IntegerClass = wrap("java.lang.Integer", IntType, NumberClass)
	LongClass = wrap("java.lang.Long", LongType, NumberClass)
	FloatClass = wrap("java.lang.Float", FloatType, NumberClass)
	DoubleClass = wrap("java.lang.Double", DoubleType, NumberClass)

	defineObject()
	defineClassClass()
	defineString()
	defineWrappers()
	defineThrowables()

	sentinels = map[error]*Class{
		ErrClassNotFound:     ClassNotFoundExceptionClass,
		ErrIllegalAccess:     IllegalAccessExceptionClass,
		ErrIllegalArgument:   IllegalArgumentExceptionClass,
		ErrIndexOutOfBounds:  IndexOutOfBoundsExceptionClass,
		ErrNullPointer:       NullPointerExceptionClass,
		ErrClassCast:         ClassCastExceptionClass,
		ErrNegativeArraySize: NegativeArraySizeExceptionClass,
		ErrArithmetic:        ArithmeticExceptionClass,
	}

	bootstrapClasses = append(bootstrapClasses,
		ObjectClass, ClassClass, SerializableClass, CloneableClass, ComparableClass,
		CharSequenceClass, NumberClass, StringClass, BooleanClass, CharacterClass,
		ByteClass, ShortClass, IntegerClass, LongClass, FloatClass, DoubleClass,
	)
}

func defineObject() {
	ObjectClass.DefineConstructor(Public, nil, func([]any) (any, error) {
		return NewObject(ObjectClass), nil
	})
	ObjectClass.DefineMethod("getClass", Public, ClassClass, nil, func(recv any, _ []any) (any, error) {
		return ClassOf(recv), nil
	})
	ObjectClass.DefineMethod("hashCode", Public, IntType, nil, func(recv any, _ []any) (any, error) {
		return hashOf(recv), nil
	})
	ObjectClass.DefineMethod("equals", Public, BooleanType, []*Class{ObjectClass}, func(recv any, args []any) (any, error) {
		return recv == args[0], nil
	})
	ObjectClass.DefineMethod("toString", Public, StringClass, nil, func(recv any, _ []any) (any, error) {
		return ToString(recv), nil
	})
}

func defineClassClass() {
	c := ClassClass
	self := func(recv any) *Class { return recv.(*Class) }
	c.DefineMethod("getName", Public, StringClass, nil, func(recv any, _ []any) (any, error) {
		return self(recv).Name(), nil
	})
	c.DefineMethod("getSimpleName", Public, StringClass, nil, func(recv any, _ []any) (any, error) {
		return self(recv).SimpleName(), nil
	})
	c.DefineMethod("isArray", Public, BooleanType, nil, func(recv any, _ []any) (any, error) {
		return self(recv).IsArray(), nil
	})
	c.DefineMethod("isInterface", Public, BooleanType, nil, func(recv any, _ []any) (any, error) {
		return self(recv).IsInterface(), nil
	})
	c.DefineMethod("isPrimitive", Public, BooleanType, nil, func(recv any, _ []any) (any, error) {
		return self(recv).IsPrimitive(), nil
	})
	c.DefineMethod("getSuperclass", Public, ClassClass, nil, func(recv any, _ []any) (any, error) {
		if s := self(recv).Superclass(); s != nil {
			return s, nil
		}
		return nil, nil
	})
	c.DefineMethod("getComponentType", Public, ClassClass, nil, func(recv any, _ []any) (any, error) {
		if s := self(recv).ComponentType(); s != nil {
			return s, nil
		}
		return nil, nil
	})
	c.DefineMethod("isInstance", Public, BooleanType, []*Class{ObjectClass}, func(recv any, args []any) (any, error) {
		return self(recv).IsInstance(args[0]), nil
	})
	c.DefineMethod("isAssignableFrom", Public, BooleanType, []*Class{ClassClass}, func(recv any, args []any) (any, error) {
		other, _ := args[0].(*Class)
		if other == nil {
			return nil, Throw(NullPointerExceptionClass, "isAssignableFrom(null)")
		}
		return self(recv).IsAssignableFrom(other), nil
	})
	c.DefineMethod("newInstance", Public, ObjectClass, nil, func(recv any, _ []any) (any, error) {
		k := self(recv).FindConstructor("()V")
		if k == nil || !k.IsPublic() {
			return nil, Throw(InstantiationExceptionClass, "%s has no public no-arg constructor", self(recv).Name())
		}
		v, err := k.NewInstance(nil)
		var ite *InvocationTargetError
		if errors.As(err, &ite) {
			return nil, ite.Cause
		}
		return v, err
	})
	c.DefineMethod("toString", Public, StringClass, nil, func(recv any, _ []any) (any, error) {
		return self(recv).String(), nil
	})
}

func defineString() {
	s := StringClass
	str := func(v any) string { return v.(string) }
	s.DefineConstructor(Public, nil, func([]any) (any, error) { return "", nil })
	s.DefineConstructor(Public, []*Class{StringClass}, func(args []any) (any, error) {
		if args[0] == nil {
			return nil, Throw(NullPointerExceptionClass, "new String(null)")
		}
		return str(args[0]), nil
	})
	s.DefineMethod("length", Public, IntType, nil, func(recv any, _ []any) (any, error) {
		return int32(len([]rune(str(recv)))), nil
	})
	s.DefineMethod("isEmpty", Public, BooleanType, nil, func(recv any, _ []any) (any, error) {
		return str(recv) == "", nil
	})
	s.DefineMethod("charAt", Public, CharType, []*Class{IntType}, func(recv any, args []any) (any, error) {
		r := []rune(str(recv))
		i := int(args[0].(int32))
		if i < 0 || i >= len(r) {
			return nil, Throw(IndexOutOfBoundsExceptionClass, "index %d, length %d", i, len(r))
		}
		return uint16(r[i]), nil
	})
	s.DefineMethod("concat", Public, StringClass, []*Class{StringClass}, func(recv any, args []any) (any, error) {
		if args[0] == nil {
			return nil, Throw(NullPointerExceptionClass, "concat(null)")
		}
		return str(recv) + str(args[0]), nil
	})
	s.DefineMethod("toUpperCase", Public, StringClass, nil, func(recv any, _ []any) (any, error) {
		return strings.ToUpper(str(recv)), nil
	})
	s.DefineMethod("toLowerCase", Public, StringClass, nil, func(recv any, _ []any) (any, error) {
		return strings.ToLower(str(recv)), nil
	})
	substring := func(v string, begin, end int) (any, error) {
		r := []rune(v)
		if begin < 0 || end > len(r) || begin > end {
			return nil, Throw(IndexOutOfBoundsExceptionClass, "begin %d, end %d, length %d", begin, end, len(r))
		}
		return string(r[begin:end]), nil
	}
	s.DefineMethod("substring", Public, StringClass, []*Class{IntType}, func(recv any, args []any) (any, error) {
		return substring(str(recv), int(args[0].(int32)), len([]rune(str(recv))))
	})
	s.DefineMethod("substring", Public, StringClass, []*Class{IntType, IntType}, func(recv any, args []any) (any, error) {
		return substring(str(recv), int(args[0].(int32)), int(args[1].(int32)))
	})
	s.DefineMethod("compareTo", Public, IntType, []*Class{StringClass}, func(recv any, args []any) (any, error) {
		if args[0] == nil {
			return nil, Throw(NullPointerExceptionClass, "compareTo(null)")
		}
		return int32(strings.Compare(str(recv), str(args[0]))), nil
	})
	s.DefineMethod("valueOf", Public|Static, StringClass, []*Class{ObjectClass}, func(_ any, args []any) (any, error) {
		return ToString(args[0]), nil
	})
	s.DefineMethod("valueOf", Public|Static, StringClass, []*Class{IntType}, func(_ any, args []any) (any, error) {
		return ToString(args[0]), nil
	})
}

func defineWrappers() {
	for _, c := range []*Class{ByteClass, ShortClass, IntegerClass, LongClass, FloatClass, DoubleClass} {
		defineNumeric(c)
	}
	for _, c := range []*Class{BooleanClass, CharacterClass, ByteClass, ShortClass, IntegerClass, LongClass, FloatClass, DoubleClass} {
		prim := c.wrapper
		c.DefineConstructor(Public, []*Class{prim}, func(args []any) (any, error) { return args[0], nil })
		c.DefineMethod("valueOf", Public|Static, c, []*Class{prim}, func(_ any, args []any) (any, error) { return args[0], nil })
		c.DefineMethod("valueOf", Public|Static, c, []*Class{StringClass}, func(_ any, args []any) (any, error) {
			return parsePrimitive(prim, args[0])
		})
		c.DefineMethod(prim.Name()+"Value", Public, prim, nil, func(recv any, _ []any) (any, error) { return recv, nil })
		c.DefineMethod("compareTo", Public, IntType, []*Class{c}, func(recv any, args []any) (any, error) {
			if args[0] == nil {
				return nil, Throw(NullPointerExceptionClass, "compareTo(null)")
			}
			return compareBoxed(recv, args[0]), nil
		})
	}

	IntegerClass.DefineConstructor(Public, []*Class{StringClass}, func(args []any) (any, error) {
		return parsePrimitive(IntType, args[0])
	})
	IntegerClass.DefineMethod("parseInt", Public|Static, IntType, []*Class{StringClass}, func(_ any, args []any) (any, error) {
		return parsePrimitive(IntType, args[0])
	})
	IntegerClass.DefineMethod("toString", Public|Static, StringClass, []*Class{IntType}, func(_ any, args []any) (any, error) {
		return ToString(args[0]), nil
	})
	IntegerClass.DefineField("MAX_VALUE", Public|Static, IntType, int32(math.MaxInt32))
	IntegerClass.DefineField("MIN_VALUE", Public|Static, IntType, int32(math.MinInt32))
	LongClass.DefineMethod("parseLong", Public|Static, LongType, []*Class{StringClass}, func(_ any, args []any) (any, error) {
		return parsePrimitive(LongType, args[0])
	})
	DoubleClass.DefineMethod("parseDouble", Public|Static, DoubleType, []*Class{StringClass}, func(_ any, args []any) (any, error) {
		return parsePrimitive(DoubleType, args[0])
	})
	BooleanClass.DefineMethod("parseBoolean", Public|Static, BooleanType, []*Class{StringClass}, func(_ any, args []any) (any, error) {
		s, _ := args[0].(string)
		return strings.EqualFold(s, "true"), nil
	})
	BooleanClass.DefineField("TRUE", Public|Static, BooleanClass, true)
	BooleanClass.DefineField("FALSE", Public|Static, BooleanClass, false)
}

// defineNumeric adds Number's conversion methods to a numeric wrapper.
func defineNumeric(c *Class) {
	conversions := []struct {
		name string
		typ  *Class
	}{
		{"byteValue", ByteType}, {"shortValue", ShortType}, {"intValue", IntType},
		{"longValue", LongType}, {"floatValue", FloatType}, {"doubleValue", DoubleType},
	}
	for _, conv := range conversions {
		typ := conv.typ
		if NumberClass.FindMethod(conv.name, "()"+primitiveCodes[typ.name]) == nil {
			NumberClass.DefineMethod(conv.name, Public|Abstract, typ, nil, nil)
		}
		c.DefineMethod(conv.name, Public, typ, nil, func(recv any, _ []any) (any, error) {
			return convertNumber(recv, typ), nil
		})
	}
}

func defineThrowables() {
	sub := func(name string, super *Class) *Class {
		c := NewClass(name, super)
		c.DefineInitializer(Public, nil, func(*Object, []any) error { return nil })
		c.DefineInitializer(Public, []*Class{StringClass}, func(this *Object, args []any) error {
			this.Set("message", args[0])
			return nil
		})
		bootstrapClasses = append(bootstrapClasses, c)
		return c
	}
	ThrowableClass = sub("java.lang.Throwable", ObjectClass)
	ThrowableClass.interfaces = []*Class{SerializableClass}
	ThrowableClass.DefineField("message", Private, StringClass, nil)
	ThrowableClass.DefineMethod("getMessage", Public, StringClass, nil, func(recv any, _ []any) (any, error) {
		return recv.(*Object).Get("message"), nil
	})
	ExceptionClass = sub("java.lang.Exception", ThrowableClass)
	ErrorClass = sub("java.lang.Error", ThrowableClass)
	RuntimeExceptionClass = sub("java.lang.RuntimeException", ExceptionClass)
	IllegalArgumentExceptionClass = sub("java.lang.IllegalArgumentException", RuntimeExceptionClass)
	NumberFormatExceptionClass = sub("java.lang.NumberFormatException", IllegalArgumentExceptionClass)
	IllegalStateExceptionClass = sub("java.lang.IllegalStateException", RuntimeExceptionClass)
	NullPointerExceptionClass = sub("java.lang.NullPointerException", RuntimeExceptionClass)
	ClassCastExceptionClass = sub("java.lang.ClassCastException", RuntimeExceptionClass)
	ArithmeticExceptionClass = sub("java.lang.ArithmeticException", RuntimeExceptionClass)
	IndexOutOfBoundsExceptionClass = sub("java.lang.IndexOutOfBoundsException", RuntimeExceptionClass)
	ArrayIndexOutOfBoundsExceptionClass = sub("java.lang.ArrayIndexOutOfBoundsException", IndexOutOfBoundsExceptionClass)
	NegativeArraySizeExceptionClass = sub("java.lang.NegativeArraySizeException", RuntimeExceptionClass)
	UnsupportedOperationExceptionClass = sub("java.lang.UnsupportedOperationException", RuntimeExceptionClass)
	ReflectiveOperationExceptionClass = sub("java.lang.ReflectiveOperationException", ExceptionClass)
	ClassNotFoundExceptionClass = sub("java.lang.ClassNotFoundException", ReflectiveOperationExceptionClass)
	IllegalAccessExceptionClass = sub("java.lang.IllegalAccessException", ReflectiveOperationExceptionClass)
	InstantiationExceptionClass = sub("java.lang.InstantiationException", ReflectiveOperationExceptionClass)
	NoSuchMethodExceptionClass = sub("java.lang.NoSuchMethodException", ReflectiveOperationExceptionClass)
	NoSuchFieldExceptionClass = sub("java.lang.NoSuchFieldException", ReflectiveOperationExceptionClass)
	AbstractMethodErrorClass = sub("java.lang.AbstractMethodError", ErrorClass)
	StackOverflowErrorClass = sub("java.lang.StackOverflowError", ErrorClass)
}

// ToString renders a value the way String.valueOf would.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case uint16:
		return string(rune(x))
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int8, int16, int32, int64:
		return fmt.Sprint(x)
	case *Class:
		return x.String()
	case *Throwable:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func hashOf(v any) int32 {
	switch x := v.(type) {
	case int32:
		return x
	case bool:
		if x {
			return 1231
		}
		return 1237
	case string:
		var h int32
		for _, r := range x {
			h = 31*h + int32(r)
		}
		return h
	default:
		var h int32
		for _, r := range fmt.Sprintf("%p", v) {
			h = 31*h + int32(r)
		}
		return h
	}
}

func parsePrimitive(prim *Class, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, Throw(NumberFormatExceptionClass, "null")
	}
	bad := func() (any, error) { return nil, Throw(NumberFormatExceptionClass, "For input string: %q", s) }
	switch prim {
	case BooleanType:
		return strings.EqualFold(s, "true"), nil
	case CharType:
		r := []rune(s)
		if len(r) != 1 {
			return bad()
		}
		return uint16(r[0]), nil
	case FloatType, DoubleType:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return bad()
		}
		return convertNumber(f, prim), nil
	default:
		bits := map[*Class]int{ByteType: 8, ShortType: 16, IntType: 32, LongType: 64}[prim]
		n, err := strconv.ParseInt(s, 10, bits)
		if err != nil {
			return bad()
		}
		return convertNumber(n, prim), nil
	}
}

// convertNumber applies a Java primitive narrowing/widening conversion.
func convertNumber(v any, to *Class) any {
	var i int64
	var f float64
	isFloat := false
	switch x := v.(type) {
	case int8:
		i = int64(x)
	case int16:
		i = int64(x)
	case int32:
		i = int64(x)
	case int64:
		i = x
	case uint16:
		i = int64(x)
	case float32:
		f, isFloat = float64(x), true
	case float64:
		f, isFloat = x, true
	}
	if isFloat {
		switch to {
		case FloatType:
			return float32(f)
		case DoubleType:
			return f
		default:
			i = int64(f)
		}
	}
	switch to {
	case ByteType:
		return int8(i)
	case ShortType:
		return int16(i)
	case CharType:
		return uint16(i)
	case IntType:
		return int32(i)
	case LongType:
		return i
	case FloatType:
		return float32(i)
	default:
		return float64(i)
	}
}

func compareBoxed(a, b any) int32 {
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case x:
			return 1
		default:
			return -1
		}
	case float32, float64:
		fa, fb := convertNumber(a, DoubleType).(float64), convertNumber(b, DoubleType).(float64)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	default:
		ia, ib := convertNumber(a, LongType).(int64), convertNumber(b, LongType).(int64)
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	}
}
