package examples

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// FormatForPath picks the codec from a file or object key extension.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return FormatParquet
	}
	return FormatJSON
}

type parquetExample struct {
	Position int64  `parquet:"position"`
	Input    string `parquet:"input"`
	SQLQuery string `parquet:"sql_query"`
	Answer   string `parquet:"answer"`
}

func Encode(format Format, corpus []Example) ([]byte, error) {
	switch format {
	case FormatJSON:
		if corpus == nil {
			corpus = []Example{}
		}
		data, err := json.MarshalIndent(corpus, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json corpus: %w", err)
		}
		return append(data, '\n'), nil
	case FormatParquet:
		rows := make([]parquetExample, 0, len(corpus))
		for i, example := range corpus {
			rows = append(rows, parquetExample{
				Position: int64(i),
				Input:    example.Input,
				SQLQuery: example.SQLQuery,
				Answer:   example.Answer,
			})
		}
		buf := bytes.NewBuffer(nil)
		writer := parquet.NewGenericWriter[parquetExample](buf)
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet corpus: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("close parquet writer: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", format)
	}
}

func Decode(format Format, data []byte) ([]Example, error) {
	switch format {
	case FormatJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return []Example{}, nil
		}
		var corpus []Example
		if err := json.Unmarshal(data, &corpus); err != nil {
			return nil, fmt.Errorf("decode json corpus: %w", err)
		}
		return normalizeAll(corpus), nil
	case FormatParquet:
		if len(data) == 0 {
			return []Example{}, nil
		}
		reader := parquet.NewGenericReader[parquetExample](bytes.NewReader(data))
		defer func() { _ = reader.Close() }()
		rows := make([]parquetExample, reader.NumRows())
		count, err := reader.Read(rows)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read parquet corpus: %w", err)
		}
		corpus := make([]Example, count)
		for i, row := range rows[:count] {
			corpus[i] = Example{Input: row.Input, SQLQuery: row.SQLQuery, Answer: row.Answer}
		}
		return normalizeAll(corpus), nil
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", format)
	}
}

func normalizeAll(corpus []Example) []Example {
	out := make([]Example, 0, len(corpus))
	for _, example := range corpus {
		out = append(out, example.Normalize())
	}
	return out
}
