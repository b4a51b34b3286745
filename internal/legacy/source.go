package legacy

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/eksporyuk-migrate/internal/constants"
)

// SourceSpec 导入源描述
type SourceSpec struct {
	Format         string // json / tsv / xlsx
	OrdersPath     string // json 格式下为完整导出文件
	UsersPath      string
	AffiliatesPath string
}

// Describe 返回便于记录的源描述
func (s SourceSpec) Describe() string {
	parts := []string{s.OrdersPath}
	if s.UsersPath != "" {
		parts = append(parts, s.UsersPath)
	}
	if s.AffiliatesPath != "" {
		parts = append(parts, s.AffiliatesPath)
	}
	return strings.Join(parts, ",")
}

// LoadSource 按格式读取并合并订单、用户、推广人文件
func LoadSource(spec SourceSpec) (*Export, error) {
	format := strings.ToLower(strings.TrimSpace(spec.Format))
	if format == "" {
		format = constants.SourceFormatJSON
	}
	export := &Export{}
	files := []struct {
		path string
		kind Kind
	}{
		{spec.OrdersPath, KindOrders},
		{spec.UsersPath, KindUsers},
		{spec.AffiliatesPath, KindAffiliates},
	}
	for _, item := range files {
		if strings.TrimSpace(item.path) == "" {
			continue
		}
		part, err := readFile(format, item.kind, item.path)
		if err != nil {
			return nil, err
		}
		export.Merge(part)
	}
	return export, nil
}

func readFile(format string, kind Kind, path string) (*Export, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return readFormat(format, kind, file)
}

func readFormat(format string, kind Kind, r io.Reader) (*Export, error) {
	switch format {
	case constants.SourceFormatJSON:
		return ReadJSON(r)
	case constants.SourceFormatTSV:
		return ReadTSV(kind, r)
	case constants.SourceFormatXLSX:
		return ReadXLSX(kind, r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
