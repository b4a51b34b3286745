package legacy

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX 读取后台导出的 Excel 工作簿（第一个工作表），列布局与 TSV 相同
func ReadXLSX(kind Kind, r io.Reader) (*Export, error) {
	collector, err := newRowCollector(kind)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return collector.export, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	for i, row := range rows {
		collector.add(i+1, row)
	}
	return collector.export, nil
}
