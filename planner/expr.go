package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/types"
)

// Expr represents a node in an expression tree.
// Expressions are stateless and immutable, like plan nodes.
type Expr interface {
	// Eval evaluates the expression against the provided row.
	Eval(row Row) common.Value

	// OutputType returns the type of value this expression produces.
	OutputType() types.Type

	// Symbols returns the symbols the expression reads.
	Symbols() []Symbol

	// String returns a string representation of the expression.
	String() string
}

// Row supplies the values of symbols to Eval.
type Row interface {
	Value(s Symbol) common.Value
}

type symbolRow struct {
	symbols []Symbol
	values  []common.Value
}

// NewRow returns a row binding symbols[i] to values[i].
func NewRow(symbols []Symbol, values []common.Value) Row {
	common.Assert(len(symbols) == len(values), "row has %d symbols but %d values", len(symbols), len(values))
	return symbolRow{symbols: symbols, values: values}
}

func (r symbolRow) Value(s Symbol) common.Value {
	for i, sym := range r.symbols {
		if sym.Name == s.Name {
			return r.values[i]
		}
	}
	panic(errors.AssertionFailedf("symbol %s is not part of the row", s.Name))
}

// EvalConstant evaluates an expression that reads no symbols.
func EvalConstant(e Expr) (common.Value, bool) {
	if len(e.Symbols()) != 0 {
		return common.Value{}, false
	}
	return e.Eval(NewRow(nil, nil)), true
}

// SymbolReference reads a symbol of the input row.
type SymbolReference struct {
	symbol Symbol
}

func NewSymbolReference(symbol Symbol) *SymbolReference {
	return &SymbolReference{symbol: symbol}
}

func (e *SymbolReference) Symbol() Symbol {
	return e.symbol
}

func (e *SymbolReference) Eval(row Row) common.Value {
	return row.Value(e.symbol)
}

func (e *SymbolReference) OutputType() types.Type {
	return e.symbol.Type
}

func (e *SymbolReference) Symbols() []Symbol {
	return []Symbol{e.symbol}
}

func (e *SymbolReference) String() string {
	return e.symbol.Name
}

type ConstantValueExpr struct {
	val common.Value
	typ types.Type
}

func NewConstantValueExpression(typ types.Type, val common.Value) *ConstantValueExpr {
	common.Assert(val.Type() == typ.Encoding(), "%s constant cannot hold a %s value", typ, val.Type())
	return &ConstantValueExpr{val: val, typ: typ}
}

// NewBooleanConstant returns TRUE or FALSE.
func NewBooleanConstant(b bool) *ConstantValueExpr {
	return NewConstantValueExpression(types.BOOLEAN, common.NewBoolValue(b))
}

func (e *ConstantValueExpr) Value() common.Value {
	return e.val
}

func (e *ConstantValueExpr) Eval(Row) common.Value {
	return e.val
}

func (e *ConstantValueExpr) OutputType() types.Type {
	return e.typ
}

func (e *ConstantValueExpr) Symbols() []Symbol {
	return nil
}

func (e *ConstantValueExpr) String() string {
	if e.val.IsNull() {
		return "NULL"
	}
	if e.typ == types.BOOLEAN {
		if e.val.IntValue() != 0 {
			return "TRUE"
		}
		return "FALSE"
	}
	if e.val.Type() == common.StringType {
		return fmt.Sprintf("'%s'", e.val.StringValue())
	}
	return fmt.Sprintf("%d", e.val.IntValue())
}

func symbolsOf(exprs ...Expr) []Symbol {
	var out []Symbol
	for _, e := range exprs {
		out = append(out, e.Symbols()...)
	}
	return out
}

type ComparisonType int

const (
	Equal ComparisonType = iota
	NotEqual
	GreaterThan
	LessThan
	GreaterThanOrEqual
	LessThanOrEqual
)

func (c ComparisonType) String() string {
	switch c {
	case Equal:
		return "="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	case GreaterThanOrEqual:
		return ">="
	case LessThanOrEqual:
		return "<="
	}
	return "???"
}

type ComparisonExpression struct {
	left     Expr
	right    Expr
	compType ComparisonType
}

func NewComparisonExpression(left Expr, right Expr, compType ComparisonType) *ComparisonExpression {
	return &ComparisonExpression{
		left:     left,
		right:    right,
		compType: compType,
	}
}

func (e *ComparisonExpression) Eval(t Row) common.Value {
	val1 := e.left.Eval(t)
	val2 := e.right.Eval(t)

	if val1.IsNull() || val2.IsNull() {
		return common.NewNullInt()
	}

	cmp := val1.Compare(val2)
	var result bool

	switch e.compType {
	case Equal:
		result = cmp == 0
	case NotEqual:
		result = cmp != 0
	case GreaterThan:
		result = cmp > 0
	case LessThan:
		result = cmp < 0
	case GreaterThanOrEqual:
		result = cmp >= 0
	case LessThanOrEqual:
		result = cmp <= 0
	}
	if result {
		return common.NewIntValue(1)
	}
	return common.NewIntValue(0)
}

func (e *ComparisonExpression) OutputType() types.Type {
	return types.BOOLEAN
}

func (e *ComparisonExpression) Symbols() []Symbol {
	return symbolsOf(e.left, e.right)
}

func (e *ComparisonExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", e.left.String(), e.compType.String(), e.right.String())
}

func ExprIsTrue(v common.Value) bool {
	// Must be an integer type, not null, and non-zero.
	return v.Type() == common.IntType && !v.IsNull() && v.IntValue() != 0
}

func ExprIsFalse(v common.Value) bool {
	return v.Type() == common.IntType && !v.IsNull() && v.IntValue() == 0
}

type BinaryLogicType int

const (
	And BinaryLogicType = iota
	Or
)

func (l BinaryLogicType) String() string {
	switch l {
	case And:
		return "AND"
	case Or:
		return "OR"
	}
	return "???"
}

type BinaryLogicExpression struct {
	left      Expr
	right     Expr
	logicType BinaryLogicType
}

func NewBinaryLogicExpression(left Expr, right Expr, logicType BinaryLogicType) *BinaryLogicExpression {
	return &BinaryLogicExpression{
		left:      left,
		right:     right,
		logicType: logicType,
	}
}

func (e *BinaryLogicExpression) Eval(t Row) common.Value {
	val1 := e.left.Eval(t)
	val2 := e.right.Eval(t)

	switch e.logicType {
	case And:
		if ExprIsTrue(val1) && ExprIsTrue(val2) {
			return common.NewIntValue(1)
		} else if ExprIsFalse(val1) || ExprIsFalse(val2) {
			return common.NewIntValue(0)
		}
		return common.NewNullInt()
	case Or:
		if ExprIsTrue(val1) || ExprIsTrue(val2) {
			return common.NewIntValue(1)
		} else if ExprIsFalse(val1) && ExprIsFalse(val2) {
			return common.NewIntValue(0)
		}
		return common.NewNullInt()
	default:
		panic("unknown logic type")
	}
}

func (e *BinaryLogicExpression) OutputType() types.Type {
	return types.BOOLEAN
}

func (e *BinaryLogicExpression) Symbols() []Symbol {
	return symbolsOf(e.left, e.right)
}

func (e *BinaryLogicExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", e.left.String(), e.logicType.String(), e.right.String())
}

type NegationExpression struct {
	child Expr
}

func NewNegationExpression(child Expr) *NegationExpression {
	return &NegationExpression{
		child: child,
	}
}

func (e *NegationExpression) Eval(t Row) common.Value {
	val := e.child.Eval(t)
	if val.IsNull() {
		return common.NewNullInt()
	}
	if ExprIsTrue(val) {
		return common.NewIntValue(0)
	}
	return common.NewIntValue(1)
}

func (e *NegationExpression) OutputType() types.Type {
	return types.BOOLEAN
}

func (e *NegationExpression) Symbols() []Symbol {
	return e.child.Symbols()
}

func (e *NegationExpression) String() string {
	return fmt.Sprintf("!(%s)", e.child.String())
}

type NullCheckType int

const (
	IsNull NullCheckType = iota
	IsNotNull
)

func (n NullCheckType) String() string {
	switch n {
	case IsNull:
		return "IS NULL"
	case IsNotNull:
		return "IS NOT NULL"
	}
	return "???"
}

type NullCheckExpression struct {
	child     Expr
	checkType NullCheckType
}

func NewNullCheckExpression(child Expr, checkType NullCheckType) *NullCheckExpression {
	return &NullCheckExpression{
		child:     child,
		checkType: checkType,
	}
}

func (e *NullCheckExpression) Eval(t Row) common.Value {
	val := e.child.Eval(t)
	isNull := val.IsNull()

	var result bool
	switch e.checkType {
	case IsNull:
		result = isNull
	case IsNotNull:
		result = !isNull
	}

	if result {
		return common.NewIntValue(1)
	}
	return common.NewIntValue(0)
}

func (e *NullCheckExpression) OutputType() types.Type {
	return types.BOOLEAN
}

func (e *NullCheckExpression) Symbols() []Symbol {
	return e.child.Symbols()
}

func (e *NullCheckExpression) String() string {
	return fmt.Sprintf("(%s %s)", e.child.String(), e.checkType.String())
}

type ArithmeticType int

const (
	Add ArithmeticType = iota
	Sub
	Mult
	Div
	Mod
)

func (a ArithmeticType) String() string {
	switch a {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mult:
		return "*"
	case Div:
		return "/"
	case Mod:
		return "%"
	}
	return "?"
}

type ArithmeticExpression struct {
	left  Expr
	right Expr
	op    ArithmeticType
}

func NewArithmeticExpression(left Expr, right Expr, op ArithmeticType) *ArithmeticExpression {
	return &ArithmeticExpression{
		left:  left,
		right: right,
		op:    op,
	}
}

func (e *ArithmeticExpression) Eval(t Row) common.Value {
	val1 := e.left.Eval(t)
	val2 := e.right.Eval(t)

	if val1.IsNull() || val2.IsNull() {
		return common.NewNullInt()
	}

	v1 := val1.IntValue()
	v2 := val2.IntValue()
	var result int64

	switch e.op {
	case Add:
		result = v1 + v2
	case Sub:
		result = v1 - v2
	case Mult:
		result = v1 * v2
	case Div:
		if v2 == 0 {
			return common.NewNullInt()
		}
		result = v1 / v2
	case Mod:
		if v2 == 0 {
			return common.NewNullInt()
		}
		result = v1 % v2
	}
	return common.NewIntValue(result)
}

func (e *ArithmeticExpression) OutputType() types.Type {
	return types.BIGINT
}

func (e *ArithmeticExpression) Symbols() []Symbol {
	return symbolsOf(e.left, e.right)
}

func (e *ArithmeticExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", e.left.String(), e.op.String(), e.right.String())
}

// StringConcatExpression handles string manipulation.
type StringConcatExpression struct {
	left  Expr
	right Expr
}

func NewStringConcatenation(left Expr, right Expr) *StringConcatExpression {
	return &StringConcatExpression{left: left, right: right}
}

func (e *StringConcatExpression) Eval(t Row) common.Value {
	val1 := e.left.Eval(t)
	val2 := e.right.Eval(t)

	if val1.IsNull() || val2.IsNull() {
		return common.NewNullString()
	}

	return common.NewStringValue(val1.StringValue() + val2.StringValue())
}

func (e *StringConcatExpression) OutputType() types.Type {
	return types.VARCHAR
}

func (e *StringConcatExpression) Symbols() []Symbol {
	return symbolsOf(e.left, e.right)
}

func (e *StringConcatExpression) String() string {
	return fmt.Sprintf("(%s || %s)", e.left.String(), e.right.String())
}

type LikeExpression struct {
	left  Expr // The value to check
	right Expr // The pattern (usually a constant)
}

func NewLikeExpression(left Expr, right Expr) *LikeExpression {
	return &LikeExpression{left: left, right: right}
}

func (e *LikeExpression) Eval(t Row) common.Value {
	val := e.left.Eval(t)
	patternVal := e.right.Eval(t)

	if val.IsNull() || patternVal.IsNull() {
		return common.NewNullInt() // Boolean NULL
	}

	target := val.StringValue()
	pattern := patternVal.StringValue()

	// Convert SQL LIKE syntax to Go Regex manually.
	// We cannot use ReplaceAll on QuoteMeta'd string because QuoteMeta does not escape % or _,
	// so we wouldn't know if a % was literal or a wildcard.
	var regexPattern strings.Builder
	regexPattern.WriteString("^")
	chars := []rune(pattern)
	for i := 0; i < len(chars); i++ {
		c := chars[i]
		if c == '\\' {
			// Look ahead for escape
			if i+1 < len(chars) {
				next := chars[i+1]
				if next == '%' || next == '_' {
					// It was a literal % or _
					regexPattern.WriteString(regexp.QuoteMeta(string(next)))
					i++
					continue
				}
			}
			// Just a normal backslash (or followed by non-wildcard), treat as literal
			regexPattern.WriteString(regexp.QuoteMeta(string(c)))
		} else if c == '%' {
			regexPattern.WriteString(".*")
		} else if c == '_' {
			regexPattern.WriteString(".")
		} else {
			regexPattern.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	regexPattern.WriteString("$")

	matched, err := regexp.MatchString(regexPattern.String(), target)
	if err != nil {
		return common.NewIntValue(0)
	}

	if matched {
		return common.NewIntValue(1)
	}
	return common.NewIntValue(0)
}

func (e *LikeExpression) OutputType() types.Type {
	return types.BOOLEAN
}

func (e *LikeExpression) Symbols() []Symbol {
	return symbolsOf(e.left, e.right)
}

func (e *LikeExpression) String() string {
	return fmt.Sprintf("(%s LIKE %s)", e.left.String(), e.right.String())
}
