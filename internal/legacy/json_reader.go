package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Kind 导出数据类型
type Kind string

const (
	KindOrders     Kind = "orders"
	KindUsers      Kind = "users"
	KindAffiliates Kind = "affiliates"
)

var (
	// ErrUnsupportedFormat 不支持的导出格式
	ErrUnsupportedFormat = errors.New("unsupported source format")
	// ErrUnknownKind 未知的数据类型
	ErrUnknownKind = errors.New("unknown export kind")
)

type rawExport struct {
	Orders     []json.RawMessage `json:"orders"`
	Users      []json.RawMessage `json:"users"`
	Affiliates []json.RawMessage `json:"affiliates"`
}

// ReadJSON 读取整份 JSON 导出，单条记录解析失败记入 Errors
func ReadJSON(r io.Reader) (*Export, error) {
	var raw rawExport
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	export := &Export{
		Orders:     make([]Order, 0, len(raw.Orders)),
		Users:      make([]User, 0, len(raw.Users)),
		Affiliates: make([]Affiliate, 0, len(raw.Affiliates)),
	}
	for i, item := range raw.Orders {
		var order Order
		if err := json.Unmarshal(item, &order); err != nil {
			export.Errors = append(export.Errors, RowError{Kind: KindOrders, Line: i + 1, Err: err.Error()})
			continue
		}
		export.Orders = append(export.Orders, order)
	}
	for i, item := range raw.Users {
		var user User
		if err := json.Unmarshal(item, &user); err != nil {
			export.Errors = append(export.Errors, RowError{Kind: KindUsers, Line: i + 1, Err: err.Error()})
			continue
		}
		export.Users = append(export.Users, user)
	}
	for i, item := range raw.Affiliates {
		var affiliate Affiliate
		if err := json.Unmarshal(item, &affiliate); err != nil {
			export.Errors = append(export.Errors, RowError{Kind: KindAffiliates, Line: i + 1, Err: err.Error()})
			continue
		}
		export.Affiliates = append(export.Affiliates, affiliate)
	}
	return export, nil
}

// ReadJSONFile 读取 JSON 导出文件
func ReadJSONFile(path string) (*Export, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer file.Close()
	return ReadJSON(file)
}

// WriteJSON 写出 JSON 导出
func WriteJSON(w io.Writer, export *Export) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// WriteJSONFile 写出 JSON 导出文件
func WriteJSONFile(path string, export *Export) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := WriteJSON(file, export); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
