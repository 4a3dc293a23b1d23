package internal

import (
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/xcodebn/zoun"
)

type constrained struct {
	Name       string      `validate:"required,notblank,min=2,max=50"`
	Nickname   string      `validate:"omitempty,len=4"`
	Email      string      `validate:"omitempty,email"`
	Code       string      `validate:"pattern=[A-Z]{20x2C4}"`
	Tags       []string    `validate:"required,min=1,dive,notblank"`
	Age        int         `validate:"min=18,max=65"`
	Salary     float64     `validate:"gt=0"`
	Balance    float64     `validate:"gte=0"`
	Debt       float64     `validate:"lt=0"`
	Penalty    float64     `validate:"lte=0"`
	Score      float64     `validate:"gt=1.5,lte=10"`
	BirthDate  pgtype.Date `validate:"omitempty,past"`
	Deadline   time.Time   `validate:"future"`
	LoggedAt   time.Time   `validate:"pastorpresent"`
	StartsAt   time.Time   `validate:"futureorpresent"`
	Expires    time.Time   `validate:"gt"`
	Choice     string      `validate:"required_without=Name|email"`
	Unchecked  string      `validate:"-"`
	Untagged   string
	AllowEmpty string `validate:"required,min=0"`
}

func constraintsOf(t *testing.T, field string) []zoun.Constraint {
	t.Helper()
	sf, ok := reflect.TypeFor[constrained]().FieldByName(field)
	if !ok {
		t.Fatalf("no field %s", field)
	}
	return extractConstraints(sf)
}

func TestExtractConstraints(t *testing.T) {
	tests := []struct {
		field string
		want  []zoun.Constraint
	}{
		{
			field: "Name",
			want: []zoun.Constraint{
				{Kind: zoun.ConstraintNotNull},
				{Kind: zoun.ConstraintNotBlank},
				{Kind: zoun.ConstraintNotEmpty},
				{Kind: zoun.ConstraintSize, Params: map[string]string{"min": "2", "max": "50"}},
			},
		},
		{
			field: "Nickname",
			want:  []zoun.Constraint{{Kind: zoun.ConstraintSize, Params: map[string]string{"min": "4", "max": "4"}}},
		},
		{
			field: "Email",
			want:  []zoun.Constraint{{Kind: zoun.ConstraintEmail}},
		},
		{
			field: "Code",
			want:  []zoun.Constraint{{Kind: zoun.ConstraintPattern, Params: map[string]string{"regexp": "[A-Z]{2,4}"}}},
		},
		{
			field: "Tags",
			want: []zoun.Constraint{
				{Kind: zoun.ConstraintNotNull},
				{Kind: zoun.ConstraintNotEmpty},
				{Kind: zoun.ConstraintSize, Params: map[string]string{"min": "1"}},
			},
		},
		{
			field: "Age",
			want: []zoun.Constraint{
				{Kind: zoun.ConstraintMin, Params: map[string]string{"value": "18"}},
				{Kind: zoun.ConstraintMax, Params: map[string]string{"value": "65"}},
			},
		},
		{field: "Salary", want: []zoun.Constraint{{Kind: zoun.ConstraintPositive}}},
		{field: "Balance", want: []zoun.Constraint{{Kind: zoun.ConstraintPositiveOrZero}}},
		{field: "Debt", want: []zoun.Constraint{{Kind: zoun.ConstraintNegative}}},
		{field: "Penalty", want: []zoun.Constraint{{Kind: zoun.ConstraintNegativeOrZero}}},
		{
			field: "Score",
			want: []zoun.Constraint{
				{Kind: zoun.ConstraintMin, Params: map[string]string{"value": "1.5", "inclusive": "false"}},
				{Kind: zoun.ConstraintMax, Params: map[string]string{"value": "10", "inclusive": "true"}},
			},
		},
		{field: "BirthDate", want: []zoun.Constraint{{Kind: zoun.ConstraintPast}}},
		{field: "Deadline", want: []zoun.Constraint{{Kind: zoun.ConstraintFuture}}},
		{field: "LoggedAt", want: []zoun.Constraint{{Kind: zoun.ConstraintPastOrPresent}}},
		{field: "StartsAt", want: []zoun.Constraint{{Kind: zoun.ConstraintFutureOrPresent}}},
		{field: "Expires", want: []zoun.Constraint{{Kind: zoun.ConstraintFuture}}},
		{field: "Choice", want: nil},
		{field: "Unchecked", want: nil},
		{field: "Untagged", want: nil},
		{
			field: "AllowEmpty",
			want: []zoun.Constraint{
				{Kind: zoun.ConstraintNotNull},
				{Kind: zoun.ConstraintSize, Params: map[string]string{"min": "0"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, constraintsOf(t, tt.field))
		})
	}
}

func TestExtractConstraints_FollowsKindOrder(t *testing.T) {
	constraints := constraintsOf(t, "Name")

	position := make(map[zoun.ConstraintKind]int, len(zoun.ConstraintKinds))
	for i, kind := range zoun.ConstraintKinds {
		position[kind] = i
	}
	for i := 1; i < len(constraints); i++ {
		assert.Less(t, position[constraints[i-1].Kind], position[constraints[i].Kind])
	}
}

func TestSplitRules(t *testing.T) {
	assert.Equal(t, []string{"required", "min=2", "pattern=[a-z]0x2C"}, splitRules("required, min=2,,pattern=[a-z]0x2C"))
	assert.Empty(t, splitRules(""))
	assert.Equal(t, "a,b|c", unescapeParam("a0x2Cb0x7Cc"))
}
