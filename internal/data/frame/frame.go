// Package frame wraps a dataframe-go DataFrame with the few cleaning steps
// a tabular walkthrough needs before modelling.
package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/rs/zerolog/log"
)

var ErrColumnNotFound = errors.New("column not found")

// Row is a single record keyed by column name.
type Row map[string]string

// Frame is a table of string values, one series per column.
type Frame struct {
	df *dataframe.DataFrame
}

// Load reads a csv with a header line. Every column is loaded as a string series,
// typing happens later when a recipe is prepared.
func Load(ctx context.Context, r io.ReadSeeker) (*Frame, error) {
	df, err := imports.LoadFromCSV(ctx, r, imports.CSVLoadOptions{
		TrimLeadingSpace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not load csv: %w", err)
	}
	rows, cols := df.NRows(), len(df.Series)
	log.Info().Int("rows", rows).Int("cols", cols).Msg("loaded frame")
	return &Frame{df: df}, nil
}

// Shape returns the number of rows and columns.
func (f *Frame) Shape() (int, int) {
	return f.df.NRows(), len(f.df.Series)
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return f.df.Names()
}

// Column returns the values of the named column, missing values as empty strings.
func (f *Frame) Column(name string) ([]string, error) {
	idx, err := f.df.NameToColumn(name)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", name, ErrColumnNotFound)
	}
	series := f.df.Series[idx]
	values := make([]string, series.NRows())
	for i := range values {
		values[i] = str(series.Value(i))
	}
	return values, nil
}

// DropColumn removes the named column, e.g. an identifier that must not reach a model.
func (f *Frame) DropColumn(name string) error {
	if _, err := f.df.NameToColumn(name); err != nil {
		return fmt.Errorf("'%s': %w", name, ErrColumnNotFound)
	}
	if err := f.df.RemoveSeries(name); err != nil {
		return fmt.Errorf("could not drop column '%s': %w", name, err)
	}
	log.Debug().Str("column", name).Msg("dropped column")
	return nil
}

// DropMissing removes every row with a missing or blank value in any column.
// It returns the number of rows removed.
func (f *Frame) DropMissing(ctx context.Context) (int, error) {
	before := f.df.NRows()
	_, err := dataframe.Filter(ctx, f.df, dataframe.FilterDataFrameFn(func(vals map[interface{}]interface{}, row, nRows int) (dataframe.FilterAction, error) {
		for k, v := range vals {
			if _, ok := k.(string); !ok {
				continue
			}
			if Missing(v) {
				return dataframe.DROP, nil
			}
		}
		return dataframe.KEEP, nil
	}), dataframe.FilterOptions{InPlace: true})
	if err != nil {
		return 0, fmt.Errorf("could not filter missing values: %w", err)
	}
	dropped := before - f.df.NRows()
	log.Info().Int("before", before).Int("dropped", dropped).Msg("dropped rows with missing values")
	return dropped, nil
}

// Rows returns the records of the frame.
func (f *Frame) Rows() []Row {
	names := f.Names()
	rows := make([]Row, f.df.NRows())
	for i := range rows {
		row := make(Row, len(names))
		for j, series := range f.df.Series {
			row[names[j]] = str(series.Value(i))
		}
		rows[i] = row
	}
	return rows
}

// Glimpse prints one line per column with its inferred kind and the first values.
func (f *Frame) Glimpse(w io.Writer, n int) {
	rows, cols := f.Shape()
	fmt.Fprintf(w, "Rows: %d\nColumns: %d\n", rows, cols)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"column", "kind", "values"})
	table.SetAutoWrapText(false)
	for _, series := range f.df.Series {
		values := make([]string, 0, n)
		numeric := true
		for i := 0; i < series.NRows(); i++ {
			v := str(series.Value(i))
			if !Missing(v) {
				if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
					numeric = false
				}
			}
			if i < n {
				values = append(values, v)
			}
		}
		kind := "<chr>"
		if numeric {
			kind = "<dbl>"
		}
		table.Append([]string{series.Name(), kind, strings.Join(values, ", ")})
	}
	table.Render()
}

// Missing reports if a cell value counts as missing.
func Missing(v interface{}) bool {
	if v == nil {
		return true
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s) == ""
	case *string:
		return s == nil || strings.TrimSpace(*s) == ""
	}
	return false
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
