package semantic

import (
	"fmt"
	"strings"

	"github.com/brimdata/semq/compiler/model"
)

// globals is the immutable namespace of built-in functions shared by every
// document scope.
var globals = newGlobals()

func newGlobals() *Scope {
	s := NewScope(nil)
	for _, f := range builtins {
		s.symbols[f.Name] = &entry{ref: f, order: len(s.symbols)}
	}
	return s
}

// Globals returns the names of the built-in functions.
func Globals() []string {
	return globals.Names()
}

const (
	number    = model.TypeNumber
	str       = model.TypeString
	timestamp = model.TypeTimestamp
)

func param(name string, accept model.Acceptance, types ...model.DataType) model.Param {
	return model.Param{Name: name, Types: types, Accept: accept}
}

func fn(name string, overloads ...*model.Overload) *model.Function {
	return &model.Function{Kind: "Function", Name: name, Overloads: overloads}
}

// An overload with an empty Returns has the type of its first argument.
func sig(shape model.Shape, returns model.DataType, params ...model.Param) *model.Overload {
	return &model.Overload{Params: params, Returns: returns, Shape: shape}
}

func variadic(o *model.Overload) *model.Overload {
	o.Variadic = true
	return o
}

var (
	value       = param("value", model.AcceptAggregate)
	numberValue = param("value", model.AcceptAggregate, number)
	stringValue = param("value", model.AcceptAggregate, str)
	aggValue    = param("value", model.AcceptScalar)
	aggNumber   = param("value", model.AcceptScalar, number)
	outputValue = param("value", model.AcceptOutput)
	offset      = param("offset", model.AcceptLiteral, number)
	dflt        = param("default", model.AcceptConstant)
)

var builtins = []*model.Function{
	fn("count",
		sig(model.Aggregate, number),
		sig(model.Aggregate, number, aggValue)),
	fn("sum", sig(model.Aggregate, number, aggNumber)),
	fn("avg", sig(model.Aggregate, number, aggNumber)),
	fn("min", sig(model.Aggregate, "", aggValue)),
	fn("max", sig(model.Aggregate, "", aggValue)),

	fn("abs", sig(model.Scalar, number, numberValue)),
	fn("ceil", sig(model.Scalar, number, numberValue)),
	fn("coalesce", variadic(sig(model.Scalar, "", value))),
	fn("concat", variadic(sig(model.Scalar, str, value))),
	fn("floor", sig(model.Scalar, number, numberValue)),
	fn("ifnull", sig(model.Scalar, "", value, param("default", model.AcceptAggregate))),
	fn("length", sig(model.Scalar, number, stringValue)),
	fn("lower", sig(model.Scalar, str, stringValue)),
	fn("now", sig(model.Scalar, timestamp)),
	fn("round",
		sig(model.Scalar, number, numberValue),
		sig(model.Scalar, number, numberValue, param("precision", model.AcceptLiteral, number))),
	fn("substr",
		sig(model.Scalar, str, stringValue, param("position", model.AcceptAggregate, number)),
		sig(model.Scalar, str, stringValue, param("position", model.AcceptAggregate, number), param("length", model.AcceptAggregate, number))),
	fn("trim", sig(model.Scalar, str, stringValue)),
	fn("upper", sig(model.Scalar, str, stringValue)),

	fn("first_value", sig(model.Analytic, "", outputValue)),
	fn("lag",
		sig(model.Analytic, "", outputValue),
		sig(model.Analytic, "", outputValue, offset),
		sig(model.Analytic, "", outputValue, offset, dflt)),
	fn("lead",
		sig(model.Analytic, "", outputValue),
		sig(model.Analytic, "", outputValue, offset),
		sig(model.Analytic, "", outputValue, offset, dflt)),
	fn("rank", sig(model.Analytic, number)),
	fn("row_number", sig(model.Analytic, number)),
}

// isAsymmetric reports whether an aggregate gives a wrong answer when rows
// are fanned out by a join and so needs the join's unique key.
func isAsymmetric(name string) bool {
	return name == "sum" || name == "avg"
}

func matchOverload(f *model.Function, args []exprValue) *model.Overload {
	for _, o := range f.Overloads {
		if matches(o, args) {
			return o
		}
	}
	return nil
}

func matches(o *model.Overload, args []exprValue) bool {
	if o.Variadic {
		if len(args) < len(o.Params) {
			return false
		}
	} else if len(args) != len(o.Params) {
		return false
	}
	for k, arg := range args {
		if !typeAccepts(paramAt(o, k).Types, arg.typ) {
			return false
		}
	}
	return true
}

func paramAt(o *model.Overload, k int) model.Param {
	if k >= len(o.Params) {
		return o.Params[len(o.Params)-1]
	}
	return o.Params[k]
}

func typeAccepts(types []model.DataType, typ model.DataType) bool {
	if len(types) == 0 || typ == model.TypeNull || typ == model.TypeError {
		return true
	}
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}

func noOverload(name string, args []exprValue) string {
	types := make([]string, 0, len(args))
	for _, a := range args {
		types = append(types, string(a.typ))
	}
	return fmt.Sprintf("No matching overload for function %s(%s)", name, strings.Join(types, ", "))
}

// checkParams returns an error message for each argument whose shape or
// evaluation space is not accepted by its parameter.
func checkParams(name string, o *model.Overload, args []exprValue) []string {
	var errs []string
	for k, arg := range args {
		p := paramAt(o, k)
		prefix := fmt.Sprintf("Parameter %d ('%s') of %s must be", k+1, p.Name, name)
		switch p.Accept {
		case model.AcceptScalar:
			if arg.shape != model.Scalar {
				errs = append(errs, fmt.Sprintf("%s scalar, but received %s", prefix, shapeName(arg.shape)))
			}
		case model.AcceptAggregate:
			if arg.shape == model.Analytic {
				errs = append(errs, fmt.Sprintf("%s scalar or aggregate, but received %s", prefix, shapeName(arg.shape)))
			}
		case model.AcceptLiteral:
			if arg.space != model.SpaceLiteral {
				errs = append(errs, fmt.Sprintf("%s literal, but received %s", prefix, arg.space))
			}
		case model.AcceptConstant:
			if arg.space > model.SpaceConstant {
				errs = append(errs, fmt.Sprintf("%s literal or constant, but received %s", prefix, arg.space))
			}
		case model.AcceptOutput:
			if arg.space > model.SpaceOutput {
				errs = append(errs, fmt.Sprintf("%s literal, constant or output, but received %s", prefix, arg.space))
			}
		}
	}
	return errs
}

func shapeName(s model.Shape) string {
	if s == model.UngroupedAggregate {
		return "aggregate"
	}
	return s.String()
}

// returnType is the result type of o applied to args.
func returnType(o *model.Overload, args []exprValue) model.DataType {
	if o.Returns != "" {
		return o.Returns
	}
	for _, a := range args {
		if a.typ != model.TypeNull {
			return a.typ
		}
	}
	return model.TypeNull
}
