package fetcher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/observability/metrics"

	"github.com/tidwall/gjson"
)

// Reasons a feature record is skipped.
const (
	skipMissingID    = "missing_id"
	skipMissingTitle = "missing_title"
	skipNotObject    = "not_object"
)

// DecodeFeatureCollection decodes a {"features": [...]} document.
//
// Records are GeoJSON-like: the id comes from "id" or "properties.id", the
// title from "properties.title" (or "properties.headline"), the description
// from "properties.description". Records without id or title are skipped and
// counted. A body that is not JSON or has no "features" array is an error.
func DecodeFeatureCollection(body []byte) ([]entity.Feature, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrMalformedFeed)
	}

	features := gjson.GetBytes(body, "features")
	if !features.Exists() || !features.IsArray() {
		return nil, fmt.Errorf("%w: missing \"features\" array", ErrMalformedFeed)
	}

	out := make([]entity.Feature, 0, len(features.Array()))
	features.ForEach(func(_, rec gjson.Result) bool {
		f, reason := decodeFeature(rec)
		if reason != "" {
			metrics.RecordFeatureSkipped(reason)
			slog.Warn("skipping feature record", slog.String("reason", reason))
			return true
		}
		out = append(out, f)
		return true
	})
	return out, nil
}

func decodeFeature(rec gjson.Result) (entity.Feature, string) {
	if !rec.IsObject() {
		return entity.Feature{}, skipNotObject
	}

	id := rec.Get("id")
	if !id.Exists() || id.String() == "" {
		id = rec.Get("properties.id")
	}
	featureID := strings.TrimSpace(id.String())
	if featureID == "" {
		return entity.Feature{}, skipMissingID
	}

	title := strings.TrimSpace(rec.Get("properties.title").String())
	if title == "" {
		title = strings.TrimSpace(rec.Get("properties.headline").String())
	}
	if title == "" {
		return entity.Feature{}, skipMissingTitle
	}

	f := entity.Feature{
		ID:          featureID,
		Title:       title,
		Description: strings.TrimSpace(rec.Get("properties.description").String()),
		Raw:         json.RawMessage(rec.Raw),
	}
	if props := rec.Get("properties"); props.IsObject() {
		f.Properties = json.RawMessage(props.Raw)
	}
	return f, ""
}
