// Package ast is the abstract syntax tree of the Vesper language: a pure
// data description of parsed source with an indented string dumper. It
// carries no execution semantics, and no package of this module compiles it
// to bytecode.
package ast

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Node interface
// ---------------------------------------------------------------------------

// Node is implemented by every AST node.
type Node interface {
	// ClassName returns the node's type name as printed by the dumper.
	ClassName() string
	// Dump appends the node's description, indented by level spaces;
	// children indent a further step spaces.
	Dump(b *strings.Builder, level, step int)
	node()
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	expr()
}

// DumpString renders a node tree the way the toolchain's debug dumper does.
func DumpString(n Node, step int) string {
	var b strings.Builder
	n.Dump(&b, 0, step)
	return b.String()
}

func indent(b *strings.Builder, level int) {
	for i := 0; i < level; i++ {
		b.WriteByte(' ')
	}
}

// ---------------------------------------------------------------------------
// Operations and literal kinds
// ---------------------------------------------------------------------------

// UnaryOperation enumerates prefix operators.
type UnaryOperation uint8

const (
	Negate UnaryOperation = iota
	BitwiseNot
	LogicalNot
)

var unaryOperationNames = [...]string{"Negate", "BitwiseNot", "LogicalNot"}

func (op UnaryOperation) String() string {
	if int(op) < len(unaryOperationNames) {
		return unaryOperationNames[op]
	}
	return fmt.Sprintf("UnaryOperation(%d)", uint8(op))
}

// BinaryOperation enumerates infix operators.
type BinaryOperation uint8

const (
	Add BinaryOperation = iota
	Subtract
	Multiply
	Divide
	Modulo
	CompareEqual
	CompareNotEqual
	CompareLess
	CompareLessEqual
	CompareGreater
	CompareGreaterEqual
	LogicalAnd
	LogicalOr
	BitwiseAnd
	BitwiseOr
	BitwiseXor
)

var binaryOperationNames = [...]string{
	"Add", "Subtract", "Multiply", "Divide", "Modulo",
	"CompareEqual", "CompareNotEqual", "CompareLess", "CompareLessEqual",
	"CompareGreater", "CompareGreaterEqual",
	"LogicalAnd", "LogicalOr",
	"BitwiseAnd", "BitwiseOr", "BitwiseXor",
}

func (op BinaryOperation) String() string {
	if int(op) < len(binaryOperationNames) {
		return binaryOperationNames[op]
	}
	return fmt.Sprintf("BinaryOperation(%d)", uint8(op))
}

// LiteralType enumerates literal kinds. FloatingPoint exists in the AST only;
// no bytecode instruction consumes it.
type LiteralType uint8

const (
	UnsignedInteger LiteralType = iota
	SignedInteger
	FloatingPoint
	Boolean
	StringLiteral
)

var literalTypeNames = [...]string{
	"UnsignedInteger", "SignedInteger", "FloatingPoint", "Boolean", "String",
}

func (t LiteralType) String() string {
	if int(t) < len(literalTypeNames) {
		return literalTypeNames[t]
	}
	return fmt.Sprintf("LiteralType(%d)", uint8(t))
}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// ExecutionScope is an ordered sequence of statements and declarations.
type ExecutionScope struct {
	Children []Node
}

func (n *ExecutionScope) ClassName() string { return "ExecutionScope" }
func (n *ExecutionScope) node()             {}

// AddChild appends a node to the scope.
func (n *ExecutionScope) AddChild(child Node) {
	n.Children = append(n.Children, child)
}

func (n *ExecutionScope) Dump(b *strings.Builder, level, step int) {
	for index, child := range n.Children {
		indent(b, level)
		fmt.Fprintf(b, "(%s) [%d]\n", child.ClassName(), index)
		child.Dump(b, level+step, step)
	}
}

// WhileStructure is a while loop.
type WhileStructure struct {
	Condition Expr
	Body      *ExecutionScope
}

func (n *WhileStructure) ClassName() string { return "WhileStructure" }
func (n *WhileStructure) node()             {}

func (n *WhileStructure) Dump(b *strings.Builder, level, step int) {
	indent(b, level)
	fmt.Fprintf(b, "Condition: (%s)\n", n.Condition.ClassName())
	n.Condition.Dump(b, level+step, step)
	indent(b, level)
	fmt.Fprintf(b, "Body: (%s)\n", n.Body.ClassName())
	n.Body.Dump(b, level+step, step)
}

// ReturnStatement returns a value from the enclosing function.
type ReturnStatement struct {
	Value Expr
}

func (n *ReturnStatement) ClassName() string { return "ReturnStatement" }
func (n *ReturnStatement) node()             {}

func (n *ReturnStatement) Dump(b *strings.Builder, level, step int) {
	if n.Value == nil {
		return
	}
	indent(b, level)
	fmt.Fprintf(b, "Value: (%s)\n", n.Value.ClassName())
	n.Value.Dump(b, level+step, step)
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// UnaryExpression applies a prefix operator to an operand.
type UnaryExpression struct {
	Operation UnaryOperation
	Operand   Expr
}

func (n *UnaryExpression) ClassName() string { return "UnaryExpression" }
func (n *UnaryExpression) node()             {}
func (n *UnaryExpression) expr()             {}

func (n *UnaryExpression) Dump(b *strings.Builder, level, step int) {
	indent(b, level)
	fmt.Fprintf(b, "Operation: %s\n", n.Operation)
	indent(b, level)
	fmt.Fprintf(b, "Operand: (%s)\n", n.Operand.ClassName())
	n.Operand.Dump(b, level+step, step)
}

// BinaryExpression applies an infix operator to two operands.
type BinaryExpression struct {
	Operation BinaryOperation
	Left      Expr
	Right     Expr
}

func (n *BinaryExpression) ClassName() string { return "BinaryExpression" }
func (n *BinaryExpression) node()             {}
func (n *BinaryExpression) expr()             {}

func (n *BinaryExpression) Dump(b *strings.Builder, level, step int) {
	indent(b, level)
	fmt.Fprintf(b, "Operation: %s\n", n.Operation)
	indent(b, level)
	fmt.Fprintf(b, "Left operand: (%s)\n", n.Left.ClassName())
	n.Left.Dump(b, level+step, step)
	indent(b, level)
	fmt.Fprintf(b, "Right operand: (%s)\n", n.Right.ClassName())
	n.Right.Dump(b, level+step, step)
}

// LiteralExpression is a literal of any kind. Exactly one value field is
// meaningful, selected by Type.
type LiteralExpression struct {
	Type LiteralType

	UnsignedValue uint64
	SignedValue   int64
	FloatValue    float64
	BooleanValue  bool
	StringValue   string
}

func (n *LiteralExpression) ClassName() string { return "LiteralExpression" }
func (n *LiteralExpression) node()             {}
func (n *LiteralExpression) expr()             {}

func (n *LiteralExpression) Dump(b *strings.Builder, level, step int) {
	indent(b, level)
	fmt.Fprintf(b, "Type: %s\n", n.Type)
	indent(b, level)
	switch n.Type {
	case UnsignedInteger:
		fmt.Fprintf(b, "Value: %d\n", n.UnsignedValue)
	case SignedInteger:
		fmt.Fprintf(b, "Value: %d\n", n.SignedValue)
	case FloatingPoint:
		fmt.Fprintf(b, "Value: %g\n", n.FloatValue)
	case Boolean:
		fmt.Fprintf(b, "Value: %t\n", n.BooleanValue)
	case StringLiteral:
		fmt.Fprintf(b, "Value: %s\n", n.StringValue)
	}
}

// IdentifierExpression names a variable or function.
type IdentifierExpression struct {
	Name string
}

func (n *IdentifierExpression) ClassName() string { return "IdentifierExpression" }
func (n *IdentifierExpression) node()             {}
func (n *IdentifierExpression) expr()             {}

func (n *IdentifierExpression) Dump(b *strings.Builder, level, step int) {
	indent(b, level)
	fmt.Fprintf(b, "Identifier name: %s\n", n.Name)
}

// AssignmentExpression assigns the right expression to the left.
type AssignmentExpression struct {
	Left  Expr
	Right Expr
}

func (n *AssignmentExpression) ClassName() string { return "AssignmentExpression" }
func (n *AssignmentExpression) node()             {}
func (n *AssignmentExpression) expr()             {}

func (n *AssignmentExpression) Dump(b *strings.Builder, level, step int) {
	indent(b, level)
	fmt.Fprintf(b, "LHS: (%s)\n", n.Left.ClassName())
	n.Left.Dump(b, level+step, step)
	indent(b, level)
	fmt.Fprintf(b, "RHS: (%s)\n", n.Right.ClassName())
	n.Right.Dump(b, level+step, step)
}

// MemberExpression accesses a member of an object expression.
type MemberExpression struct {
	Object Expr
	Member string
}

func (n *MemberExpression) ClassName() string { return "MemberExpression" }
func (n *MemberExpression) node()             {}
func (n *MemberExpression) expr()             {}

func (n *MemberExpression) Dump(b *strings.Builder, level, step int) {
	indent(b, level)
	fmt.Fprintf(b, "Object: (%s)\n", n.Object.ClassName())
	n.Object.Dump(b, level+step, step)
	indent(b, level)
	fmt.Fprintf(b, "Member name: %s\n", n.Member)
}

// CallExpression invokes a callee with positional parameters.
type CallExpression struct {
	Callee     Expr
	Parameters []Expr
}

func (n *CallExpression) ClassName() string { return "CallExpression" }
func (n *CallExpression) node()             {}
func (n *CallExpression) expr()             {}

// AddParameter appends a call parameter.
func (n *CallExpression) AddParameter(parameter Expr) {
	n.Parameters = append(n.Parameters, parameter)
}

func (n *CallExpression) Dump(b *strings.Builder, level, step int) {
	indent(b, level)
	fmt.Fprintf(b, "Callee: (%s)\n", n.Callee.ClassName())
	n.Callee.Dump(b, level+step, step)
	for index, parameter := range n.Parameters {
		indent(b, level)
		fmt.Fprintf(b, "Parameter [%d]: (%s)\n", index, parameter.ClassName())
		parameter.Dump(b, level+step, step)
	}
}

// ---------------------------------------------------------------------------
// Declaration nodes
// ---------------------------------------------------------------------------

// VariableDeclaration declares a typed variable.
type VariableDeclaration struct {
	TypeName string
	Name     string
}

func (n *VariableDeclaration) ClassName() string { return "VariableDeclaration" }
func (n *VariableDeclaration) node()             {}
func (n *VariableDeclaration) expr()             {}

func (n *VariableDeclaration) Dump(b *strings.Builder, level, step int) {
	indent(b, level)
	fmt.Fprintf(b, "Type name: %s\n", n.TypeName)
	indent(b, level)
	fmt.Fprintf(b, "Variable name: %s\n", n.Name)
}

// Parameter is one formal parameter of a function declaration.
type Parameter struct {
	TypeName string
	Name     string
}

// FunctionDeclaration declares a function with a body.
type FunctionDeclaration struct {
	ReturnTypeName string
	Name           string
	Parameters     []Parameter
	Body           *ExecutionScope
}

func (n *FunctionDeclaration) ClassName() string { return "FunctionDeclaration" }
func (n *FunctionDeclaration) node()             {}
func (n *FunctionDeclaration) expr()             {}

func (n *FunctionDeclaration) Dump(b *strings.Builder, level, step int) {
	indent(b, level)
	fmt.Fprintf(b, "Return type: %s\n", n.ReturnTypeName)
	indent(b, level)
	fmt.Fprintf(b, "Function name: %s\n", n.Name)
	for index, parameter := range n.Parameters {
		indent(b, level)
		fmt.Fprintf(b, "Parameter [%d]: %s %s\n", index, parameter.TypeName, parameter.Name)
	}
	indent(b, level)
	fmt.Fprintf(b, "Body: (%s)\n", n.Body.ClassName())
	n.Body.Dump(b, level+step, step)
}
