package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oncall-dispatch/backend/internal/fields"
)

// HTTPProvider reads tables from the bulk import service, which answers
// GET {BaseURL}/api/oncall/techdb and /api/oncall/uszips with
// {"ok": true, "table": "...", "rows": [...]}. Rows are either objects keyed
// by column name or positional arrays.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

type tableResponse struct {
	OK    bool              `json:"ok"`
	Table string            `json:"table"`
	Rows  []json.RawMessage `json:"rows"`
	Error string            `json:"error"`
}

func (h HTTPProvider) Name() string { return "http" }

func (h HTTPProvider) TechnicianRows(ctx context.Context) ([][]string, error) {
	return h.fetch(ctx, "/api/oncall/techdb", fields.Technician)
}

func (h HTTPProvider) ZipRows(ctx context.Context) ([][]string, error) {
	return h.fetch(ctx, "/api/oncall/uszips", fields.Geo)
}

func (h HTTPProvider) fetch(ctx context.Context, path string, table fields.Table) ([][]string, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(h.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("refdata service error: %s", resp.Status)
	}

	var body tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if !body.OK {
		return nil, fmt.Errorf("refdata service refused %s: %s", path, body.Error)
	}
	return decodeRows(body.Rows, table)
}

func decodeRows(raw []json.RawMessage, table fields.Table) ([][]string, error) {
	out := make([][]string, 0, len(raw))
	for i, r := range raw {
		trimmed := strings.TrimSpace(string(r))
		switch {
		case strings.HasPrefix(trimmed, "["):
			var arr []any
			if err := json.Unmarshal(r, &arr); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			row := make([]string, len(table))
			for j := 0; j < len(table) && j < len(arr); j++ {
				row[j] = stringify(arr[j])
			}
			out = append(out, row)
		case strings.HasPrefix(trimmed, "{"):
			var obj map[string]any
			if err := json.Unmarshal(r, &obj); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			rec := make(map[string]string, len(obj))
			for k, v := range obj {
				rec[k] = stringify(v)
			}
			out = append(out, table.ProjectMap(rec))
		default:
			return nil, fmt.Errorf("row %d: expected object or array", i)
		}
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}
