package host

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type guidRef struct {
	GUID string `json:"guid"`
}

func newGUIDRef(id uuid.UUID) guidRef {
	return guidRef{GUID: strings.ToUpper(id.String())}
}

func (g *guidRef) parse() (uuid.UUID, error) {
	if g == nil || strings.TrimSpace(g.GUID) == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(g.GUID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid guid %q: %w", g.GUID, err)
	}
	return id, nil
}

type elementIDWrapper struct {
	ElementID guidRef `json:"elementId"`
}

type propertyIDWrapper struct {
	PropertyID *guidRef  `json:"propertyId,omitempty"`
	Error      *apiError `json:"error,omitempty"`
}

type classificationSystemIDWrapper struct {
	ClassificationSystemID guidRef `json:"classificationSystemId"`
}

type elementsResult struct {
	Elements []elementIDWrapper `json:"elements"`
}

type propertyName struct {
	Type             string   `json:"type"`
	NonLocalizedName string   `json:"nonLocalizedName,omitempty"`
	LocalizedName    []string `json:"localizedName,omitempty"`
}

type propertyNamesResult struct {
	Properties []propertyName `json:"properties"`
}

type propertyIDsParams struct {
	Properties []propertyName `json:"properties"`
}

type propertyIDsResult struct {
	Properties []propertyIDWrapper `json:"properties"`
}

type propertyValuesParams struct {
	Elements   []elementIDWrapper  `json:"elements"`
	Properties []propertyIDWrapper `json:"properties"`
}

type propertyValue struct {
	Type   string          `json:"type"`
	Status string          `json:"status"`
	Value  json.RawMessage `json:"value"`
}

type propertyValueWrapper struct {
	PropertyValue *propertyValue `json:"propertyValue,omitempty"`
	Error         *apiError      `json:"error,omitempty"`
}

type propertyValuesForElement struct {
	PropertyValues []propertyValueWrapper `json:"propertyValues"`
	Error          *apiError              `json:"error,omitempty"`
}

type propertyValuesResult struct {
	PropertyValuesForElements []propertyValuesForElement `json:"propertyValuesForElements"`
}

type classificationSystem struct {
	ClassificationSystemID guidRef `json:"classificationSystemId"`
	Name                   string  `json:"name"`
	Description            string  `json:"description"`
	Source                 string  `json:"source"`
	Version                string  `json:"version"`
	Date                   string  `json:"date"`
}

type classificationSystemsResult struct {
	ClassificationSystems []classificationSystem `json:"classificationSystems"`
}

type classificationItem struct {
	ClassificationItemID guidRef                     `json:"classificationItemId"`
	ID                   string                      `json:"id"`
	Name                 string                      `json:"name"`
	Description          string                      `json:"description"`
	Children             []classificationItemWrapper `json:"children,omitempty"`
}

type classificationItemWrapper struct {
	ClassificationItem classificationItem `json:"classificationItem"`
}

type classificationsInSystemResult struct {
	ClassificationItems []classificationItemWrapper `json:"classificationItems"`
}

type classificationID struct {
	ClassificationSystemID guidRef  `json:"classificationSystemId"`
	ClassificationItemID   *guidRef `json:"classificationItemId,omitempty"`
}

type classificationIDWrapper struct {
	ClassificationID *classificationID `json:"classificationId,omitempty"`
	Error            *apiError         `json:"error,omitempty"`
}

type classificationsOfElementsParams struct {
	Elements                []elementIDWrapper              `json:"elements"`
	ClassificationSystemIDs []classificationSystemIDWrapper `json:"classificationSystemIds"`
}

type elementClassification struct {
	ClassificationIDs []classificationIDWrapper `json:"classificationIds"`
	Error             *apiError                 `json:"error,omitempty"`
}

type classificationsOfElementsResult struct {
	ElementClassifications []elementClassification `json:"elementClassifications"`
}

type isAliveResult struct {
	IsAlive bool `json:"isAlive"`
}

// renderValue turns a property value of any host type into a string.
func renderValue(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return trimmed
	}
	return renderAny(decoded)
}

func renderAny(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, renderAny(item))
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		for _, key := range []string{"displayValue", "nonLocalizedValue", "value"} {
			if inner, ok := v[key]; ok {
				return renderAny(inner)
			}
		}
		encoded, _ := json.Marshal(v)
		return string(encoded)
	default:
		return fmt.Sprint(v)
	}
}
