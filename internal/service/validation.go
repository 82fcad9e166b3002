package service

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain"
)

// fieldOrder keeps reported errors in the order fields appear in a card.
var fieldOrder = map[string]int{
	"page":         0,
	"pageSize":     1,
	"limit":        2,
	"search":       3,
	"front":        4,
	"back":         5,
	"subject":      6,
	"source":       7,
	"generationId": 8,
	"sort":         9,
	"order":        10,
}

func sortFieldErrors(errs []domain.FieldError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Index != errs[j].Index {
			return errs[i].Index < errs[j].Index
		}
		oi, iok := fieldOrder[errs[i].Field]
		oj, jok := fieldOrder[errs[j].Field]
		if iok && jok && oi != oj {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return errs[i].Field < errs[j].Field
	})
}

// flattenErrors turns ozzo per-field errors into FieldErrors tagged with
// index. Anything that is not a validation.Errors is returned unchanged as
// the second value (an internal rule failure).
func flattenErrors(err error, index int) ([]domain.FieldError, error) {
	if err == nil {
		return nil, nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return nil, err
	}

	out := make([]domain.FieldError, 0, len(errs))
	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		out = append(out, domain.FieldError{Index: index, Field: field, Message: fieldErr.Error()})
	}
	sortFieldErrors(out)
	return out, nil
}

// newValidationError builds a 400 error whose message lists "field: message"
// pairs.
func newValidationError(code string, fields []domain.FieldError) *domain.ValidationError {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return &domain.ValidationError{
		Code:    code,
		Message: strings.Join(parts, ", "),
		Fields:  fields,
	}
}
