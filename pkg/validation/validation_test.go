package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/biofarmaka/pkg/pagination"
)

type rankInput struct {
	Year   int    `validate:"required,year"`
	Region string `validate:"omitempty,selector"`
	TopN   int    `validate:"omitempty,min=1,max=100"`
}

type previewInput struct {
	Table  string `validate:"required_without=Cursor,omitempty,table_name"`
	Cursor string `validate:"omitempty,cursor"`
}

func TestValidateStruct_Rules(t *testing.T) {
	require.Empty(t, ValidateStruct(rankInput{Year: 2023, Region: "Kab. Bogor", TopN: 5}))
	require.Equal(t, "VALIDATION: year is required", ValidateStruct(rankInput{}))
	require.Contains(t, ValidateStruct(rankInput{Year: -5}), "positive year")
	require.Contains(t, ValidateStruct(rankInput{Year: 2023, Region: "Bogor\x00"}), "without control characters")
	require.Contains(t, ValidateStruct(rankInput{Year: 2023, Region: strings.Repeat("a", 129)}), "1-128 characters")
	require.Contains(t, ValidateStruct(rankInput{Year: 2023, TopN: 500}), "max=100")
}

func TestValidateStruct_DataShapedSelectors(t *testing.T) {
	for _, region := range []string{"Kota/Kab. Bogor", "Bogor (Kab.)", "Bandung, Kota", "<script>"} {
		require.Empty(t, ValidateStruct(rankInput{Year: 2023, Region: region}), region)
	}
	require.Empty(t, ValidateStruct(rankInput{Year: 1850}))
	require.Empty(t, ValidateStruct(rankInput{Year: 3000}))
}

func TestValidateStruct_TableAndCursor(t *testing.T) {
	require.Empty(t, ValidateStruct(previewInput{Table: "records"}))
	require.Contains(t, ValidateStruct(previewInput{Table: "sheets"}), "table must be one of")
	require.Contains(t, ValidateStruct(previewInput{}), "or supply cursor")

	tok, err := pagination.EncodeCursor(pagination.Cursor{Sid: "s", T: pagination.TableWide, Ps: 10})
	require.NoError(t, err)
	require.Empty(t, ValidateStruct(previewInput{Cursor: tok}))
	msg := ValidateStruct(previewInput{Cursor: "%%%"})
	require.True(t, strings.HasPrefix(msg, "CURSOR_INVALID"), msg)
}
