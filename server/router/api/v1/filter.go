package v1

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/ast"
	"github.com/pkg/errors"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

// conversationFilter is the parsed form of the list endpoint's CEL filter.
// Supported grammar: `platform == '…'`, `status == '…'` and conjunctions of
// the two with `&&`.
type conversationFilter struct {
	Platform *store.Platform
	Status   *store.ConversationStatus
}

func parseConversationFilter(filterStr string) (*conversationFilter, error) {
	filter := &conversationFilter{}
	filterStr = strings.TrimSpace(filterStr)
	if filterStr == "" {
		return filter, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("platform", cel.StringType),
		cel.Variable("status", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create CEL environment")
	}

	celAST, issues := env.Compile(filterStr)
	if issues != nil && issues.Err() != nil {
		return nil, errs.Wrap(errs.KindValidation, "invalid filter expression", issues.Err())
	}

	if err := collectFilterTerms(celAST.NativeRep().Expr(), filter); err != nil {
		return nil, err
	}
	return filter, nil
}

// collectFilterTerms walks the expression tree, descending through `&&`
// nodes and recording each `field == 'value'` leaf.
func collectFilterTerms(expr ast.Expr, filter *conversationFilter) error {
	if expr == nil {
		return errs.New(errs.KindValidation, "empty filter expression")
	}
	if expr.Kind() != ast.CallKind {
		return errs.New(errs.KindValidation, "filter must be a comparison, e.g. platform == 'web'")
	}

	call := expr.AsCall()
	switch call.FunctionName() {
	case "_&&_":
		for _, arg := range call.Args() {
			if err := collectFilterTerms(arg, filter); err != nil {
				return err
			}
		}
		return nil
	case "_==_":
		args := call.Args()
		if len(args) != 2 {
			return errs.New(errs.KindValidation, "invalid comparison expression")
		}
		if field, value, ok := comparisonTerm(args[0], args[1]); ok {
			return setFilterTerm(filter, field, value)
		}
		if field, value, ok := comparisonTerm(args[1], args[0]); ok {
			return setFilterTerm(filter, field, value)
		}
		return errs.New(errs.KindValidation, "filter must compare a field with a string constant")
	default:
		return errs.Newf(errs.KindValidation, "unsupported operator %q, only == and && are allowed", call.FunctionName())
	}
}

// comparisonTerm reads one `ident == literal` pair in the given order.
func comparisonTerm(left, right ast.Expr) (field, value string, ok bool) {
	if left.Kind() != ast.IdentKind || right.Kind() != ast.LiteralKind {
		return "", "", false
	}
	str, ok := right.AsLiteral().Value().(string)
	if !ok || str == "" {
		return "", "", false
	}
	return left.AsIdent(), str, true
}

func setFilterTerm(filter *conversationFilter, field, value string) error {
	switch field {
	case "platform":
		platform := store.Platform(value)
		filter.Platform = &platform
	case "status":
		status := store.ConversationStatus(value)
		filter.Status = &status
	default:
		return errs.Newf(errs.KindValidation, "unsupported filter field %q", field)
	}
	return nil
}
