package generation

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(GeneratedQuestion)
		keys := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			keys = append(keys, o.Key)
		}
		if q.CorrectOption != "" && !slices.Contains(keys, q.CorrectOption) {
			sl.ReportError(q.CorrectOption, "CorrectOption", "correctOption", "option_key", "")
		}
	}, GeneratedQuestion{})
	return v
}

// Validate checks resp against the question schema and returns its
// questions ordered by line index. Every failure wraps ErrInvalidResponse.
func Validate(resp *Response) ([]GeneratedQuestion, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}
	if err := validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, describe(err))
	}

	out := slices.Clone(resp.Questions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].LineIndex < out[j].LineIndex })
	return out, nil
}

// describe turns validator output into a short message naming each field.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Response.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
