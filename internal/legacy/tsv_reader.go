package legacy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ReadTSV 读取制表符分隔导出，按位置列解析，坏行记入 Errors
func ReadTSV(kind Kind, r io.Reader) (*Export, error) {
	collector, err := newRowCollector(kind)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				collector.fail(parseErr.StartLine, parseErr.Err)
				continue
			}
			return nil, fmt.Errorf("read tsv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		collector.add(line, record)
	}
	return collector.export, nil
}
