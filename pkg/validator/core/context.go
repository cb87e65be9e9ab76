package core

import (
	"fmt"
	"reflect"
	"strconv"
)

// ContextKind 位置上下文类型
type ContextKind int

const (
	KindType ContextKind = iota
	KindField
	KindMethodReturnValue
	KindMethodParameter
	KindConstructorParameter
	KindMethodEntry
	KindMethodExit
	KindContainerElement
	KindMapKey
	KindMapValue
)

// Context 描述校验发生的位置（字段、参数、返回值、容器元素等）
type Context interface {
	Kind() ContextKind
	String() string
}

// TypeName 返回类型的短名称，指针会被解引用
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// TypeContext 类型级别（对象级校验、不变式）
type TypeContext struct {
	Type reflect.Type
}

func (c *TypeContext) Kind() ContextKind { return KindType }
func (c *TypeContext) String() string    { return TypeName(c.Type) }

// FieldContext 结构体字段
type FieldContext struct {
	Type  reflect.Type
	Field string
}

func (c *FieldContext) Kind() ContextKind { return KindField }
func (c *FieldContext) String() string    { return TypeName(c.Type) + "." + c.Field }

// MethodReturnValueContext 方法返回值（getter 不变式或被守护方法的返回值）
type MethodReturnValueContext struct {
	Type   reflect.Type
	Method string
}

func (c *MethodReturnValueContext) Kind() ContextKind { return KindMethodReturnValue }
func (c *MethodReturnValueContext) String() string {
	return TypeName(c.Type) + "." + c.Method + "()"
}

// MethodParameterContext 方法参数
type MethodParameterContext struct {
	Type   reflect.Type
	Method string
	Index  int
	Name   string
}

func (c *MethodParameterContext) Kind() ContextKind { return KindMethodParameter }
func (c *MethodParameterContext) String() string {
	return parameterString(TypeName(c.Type)+"."+c.Method, c.Index, c.Name)
}

// ConstructorParameterContext 构造函数参数
type ConstructorParameterContext struct {
	Type        reflect.Type
	Constructor string
	Index       int
	Name        string
}

func (c *ConstructorParameterContext) Kind() ContextKind { return KindConstructorParameter }
func (c *ConstructorParameterContext) String() string {
	name := c.Constructor
	if name == "" {
		name = "New" + TypeName(c.Type)
	}
	return parameterString(name, c.Index, c.Name)
}

func parameterString(owner string, index int, name string) string {
	s := owner + "() parameter " + strconv.Itoa(index)
	if name != "" {
		s += " (" + name + ")"
	}
	return s
}

// MethodEntryContext 前置条件
type MethodEntryContext struct {
	Type   reflect.Type
	Method string
}

func (c *MethodEntryContext) Kind() ContextKind { return KindMethodEntry }
func (c *MethodEntryContext) String() string {
	return TypeName(c.Type) + "." + c.Method + "() entry"
}

// MethodExitContext 后置条件
type MethodExitContext struct {
	Type   reflect.Type
	Method string
}

func (c *MethodExitContext) Kind() ContextKind { return KindMethodExit }
func (c *MethodExitContext) String() string {
	return TypeName(c.Type) + "." + c.Method + "() exit"
}

// ContainerElementContext slice/array 元素
type ContainerElementContext struct {
	Parent Context
	Index  int
}

func (c *ContainerElementContext) Kind() ContextKind { return KindContainerElement }
func (c *ContainerElementContext) String() string {
	return parentString(c.Parent) + "[" + strconv.Itoa(c.Index) + "]"
}

// MapKeyContext map 键
type MapKeyContext struct {
	Parent Context
	Key    any
}

func (c *MapKeyContext) Kind() ContextKind { return KindMapKey }
func (c *MapKeyContext) String() string {
	return fmt.Sprintf("%s<key %v>", parentString(c.Parent), c.Key)
}

// MapValueContext map 值
type MapValueContext struct {
	Parent Context
	Key    any
}

func (c *MapValueContext) Kind() ContextKind { return KindMapValue }
func (c *MapValueContext) String() string {
	return fmt.Sprintf("%s[%v]", parentString(c.Parent), c.Key)
}

func parentString(c Context) string {
	if c == nil {
		return ""
	}
	return c.String()
}
