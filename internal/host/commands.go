package host

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rpattn/classcheck/internal/domain"
)

const (
	cmdIsAlive                       = "API.IsAlive"
	cmdGetAllElements                = "API.GetAllElements"
	cmdGetAllPropertyNames           = "API.GetAllPropertyNames"
	cmdGetPropertyIds                = "API.GetPropertyIds"
	cmdGetPropertyValuesOfElements   = "API.GetPropertyValuesOfElements"
	cmdGetAllClassificationSystems   = "API.GetAllClassificationSystems"
	cmdGetAllClassificationsInSystem = "API.GetAllClassificationsInSystem"
	cmdGetClassificationsOfElements  = "API.GetClassificationsOfElements"
)

// IsAlive checks that the host answers commands.
func (c *Client) IsAlive(ctx context.Context) error {
	var res isAliveResult
	if err := c.Execute(ctx, cmdIsAlive, nil, &res); err != nil {
		return err
	}
	if !res.IsAlive {
		return fmt.Errorf("host at %s reports not alive", c.BaseURL())
	}
	return nil
}

// GetAllElements returns the GUIDs of every element in the model.
func (c *Client) GetAllElements(ctx context.Context) ([]uuid.UUID, error) {
	var res elementsResult
	if err := c.Execute(ctx, cmdGetAllElements, nil, &res); err != nil {
		return nil, err
	}

	elements := make([]uuid.UUID, 0, len(res.Elements))
	for i, el := range res.Elements {
		id, err := el.ElementID.parse()
		if err != nil {
			return nil, fmt.Errorf("%s element %d: %w", cmdGetAllElements, i, err)
		}
		elements = append(elements, id)
	}
	return elements, nil
}

// GetAllPropertyNames returns every property definition known to the host.
func (c *Client) GetAllPropertyNames(ctx context.Context) ([]domain.PropertyDefinition, error) {
	var res propertyNamesResult
	if err := c.Execute(ctx, cmdGetAllPropertyNames, nil, &res); err != nil {
		return nil, err
	}

	defs := make([]domain.PropertyDefinition, 0, len(res.Properties))
	for _, p := range res.Properties {
		defs = append(defs, domain.PropertyDefinition{
			Type:             domain.PropertyType(p.Type),
			NonLocalizedName: p.NonLocalizedName,
			LocalizedName:    p.LocalizedName,
		})
	}
	return defs, nil
}

// GetPropertyIDs resolves property ids for defs, in the same order.
func (c *Client) GetPropertyIDs(ctx context.Context, defs []domain.PropertyDefinition) ([]uuid.UUID, error) {
	params := propertyIDsParams{Properties: make([]propertyName, 0, len(defs))}
	for _, def := range defs {
		params.Properties = append(params.Properties, propertyName{
			Type:             string(def.Type),
			NonLocalizedName: def.NonLocalizedName,
			LocalizedName:    def.LocalizedName,
		})
	}

	var res propertyIDsResult
	if err := c.Execute(ctx, cmdGetPropertyIds, params, &res); err != nil {
		return nil, err
	}
	if len(res.Properties) != len(defs) {
		return nil, fmt.Errorf("%w: %s returned %d ids for %d properties",
			domain.ErrLengthMismatch, cmdGetPropertyIds, len(res.Properties), len(defs))
	}

	ids := make([]uuid.UUID, 0, len(res.Properties))
	for i, p := range res.Properties {
		if p.Error != nil {
			return nil, &ItemError{Command: cmdGetPropertyIds, Index: i, Code: p.Error.Code, Message: p.Error.Message}
		}
		id, err := p.PropertyID.parse()
		if err != nil {
			return nil, fmt.Errorf("%s property %d: %w", cmdGetPropertyIds, i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetPropertyValuesOfElements returns one row per element, aligned to propertyIDs.
// Values the host cannot provide are returned empty with their status kept.
func (c *Client) GetPropertyValuesOfElements(ctx context.Context, elements []uuid.UUID, propertyIDs []uuid.UUID) ([]domain.PropertyRow, error) {
	props := make([]propertyIDWrapper, 0, len(propertyIDs))
	for _, id := range propertyIDs {
		ref := newGUIDRef(id)
		props = append(props, propertyIDWrapper{PropertyID: &ref})
	}

	rows := make([]domain.PropertyRow, 0, len(elements))
	err := c.forEachBatch(elements, func(offset int, batch []elementIDWrapper) error {
		var res propertyValuesResult
		params := propertyValuesParams{Elements: batch, Properties: props}
		if err := c.Execute(ctx, cmdGetPropertyValuesOfElements, params, &res); err != nil {
			return err
		}
		if len(res.PropertyValuesForElements) != len(batch) {
			return fmt.Errorf("%w: %s returned %d rows for %d elements",
				domain.ErrLengthMismatch, cmdGetPropertyValuesOfElements, len(res.PropertyValuesForElements), len(batch))
		}

		for i, el := range res.PropertyValuesForElements {
			if el.Error != nil {
				return &ItemError{Command: cmdGetPropertyValuesOfElements, Index: offset + i, Code: el.Error.Code, Message: el.Error.Message}
			}
			row := domain.PropertyRow{Values: make([]domain.PropertyValue, 0, len(el.PropertyValues))}
			for j, pv := range el.PropertyValues {
				value := toPropertyValue(pv)
				if value.Status != domain.PropertyValueNormal {
					attrs := []any{"element_index", offset + i, "property_index", j, "status", value.Status}
					if pv.Error != nil {
						attrs = append(attrs, "code", pv.Error.Code, "message", pv.Error.Message)
					}
					c.logger.Debug("property value unavailable, stored empty", attrs...)
				}
				row.Values = append(row.Values, value)
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func toPropertyValue(pv propertyValueWrapper) domain.PropertyValue {
	if pv.Error != nil || pv.PropertyValue == nil {
		return domain.PropertyValue{Status: domain.PropertyValueFailed}
	}
	status := domain.PropertyValueStatus(pv.PropertyValue.Status)
	if status == "" {
		status = domain.PropertyValueNormal
	}
	if status != domain.PropertyValueNormal {
		return domain.PropertyValue{Status: status}
	}
	return domain.PropertyValue{Status: status, Value: renderValue(pv.PropertyValue.Value)}
}

// GetAllClassificationSystems lists the classification systems of the model.
func (c *Client) GetAllClassificationSystems(ctx context.Context) ([]domain.ClassificationSystem, error) {
	var res classificationSystemsResult
	if err := c.Execute(ctx, cmdGetAllClassificationSystems, nil, &res); err != nil {
		return nil, err
	}

	systems := make([]domain.ClassificationSystem, 0, len(res.ClassificationSystems))
	for i, s := range res.ClassificationSystems {
		id, err := s.ClassificationSystemID.parse()
		if err != nil {
			return nil, fmt.Errorf("%s system %d: %w", cmdGetAllClassificationSystems, i, err)
		}
		systems = append(systems, domain.ClassificationSystem{
			GUID:        id,
			Name:        s.Name,
			Description: s.Description,
			Source:      s.Source,
			Version:     s.Version,
			Date:        s.Date,
		})
	}
	return systems, nil
}

// GetAllClassificationsInSystem returns the root items of a system's classification tree.
func (c *Client) GetAllClassificationsInSystem(ctx context.Context, systemID uuid.UUID) ([]domain.ClassificationNode, error) {
	params := classificationSystemIDWrapper{ClassificationSystemID: newGUIDRef(systemID)}

	var res classificationsInSystemResult
	if err := c.Execute(ctx, cmdGetAllClassificationsInSystem, params, &res); err != nil {
		return nil, err
	}
	return toNodes(res.ClassificationItems)
}

// toNodes converts the wire tree iteratively so deep trees cannot exhaust the stack.
func toNodes(roots []classificationItemWrapper) ([]domain.ClassificationNode, error) {
	type pending struct {
		src []classificationItemWrapper
		dst *[]domain.ClassificationNode
	}

	var out []domain.ClassificationNode
	queue := []pending{{src: roots, dst: &out}}
	for len(queue) > 0 {
		job := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		nodes := make([]domain.ClassificationNode, len(job.src))
		for i, w := range job.src {
			item := w.ClassificationItem
			id, err := item.ClassificationItemID.parse()
			if err != nil {
				return nil, fmt.Errorf("%s item %q: %w", cmdGetAllClassificationsInSystem, item.ID, err)
			}
			nodes[i] = domain.ClassificationNode{
				GUID:        id,
				ID:          item.ID,
				Name:        item.Name,
				Description: item.Description,
			}
		}
		*job.dst = nodes
		for i, w := range job.src {
			if len(w.ClassificationItem.Children) > 0 {
				queue = append(queue, pending{src: w.ClassificationItem.Children, dst: &nodes[i].Children})
			}
		}
	}
	return out, nil
}

// GetClassificationsOfElements returns, per element, its assignments in the given systems.
func (c *Client) GetClassificationsOfElements(ctx context.Context, elements []uuid.UUID, systemIDs []uuid.UUID) ([][]domain.ClassificationAssignment, error) {
	systems := make([]classificationSystemIDWrapper, 0, len(systemIDs))
	for _, id := range systemIDs {
		systems = append(systems, classificationSystemIDWrapper{ClassificationSystemID: newGUIDRef(id)})
	}

	rows := make([][]domain.ClassificationAssignment, 0, len(elements))
	err := c.forEachBatch(elements, func(offset int, batch []elementIDWrapper) error {
		var res classificationsOfElementsResult
		params := classificationsOfElementsParams{Elements: batch, ClassificationSystemIDs: systems}
		if err := c.Execute(ctx, cmdGetClassificationsOfElements, params, &res); err != nil {
			return err
		}
		if len(res.ElementClassifications) != len(batch) {
			return fmt.Errorf("%w: %s returned %d rows for %d elements",
				domain.ErrLengthMismatch, cmdGetClassificationsOfElements, len(res.ElementClassifications), len(batch))
		}

		for i, el := range res.ElementClassifications {
			if el.Error != nil {
				return &ItemError{Command: cmdGetClassificationsOfElements, Index: offset + i, Code: el.Error.Code, Message: el.Error.Message}
			}
			assignments := make([]domain.ClassificationAssignment, 0, len(el.ClassificationIDs))
			for j, cid := range el.ClassificationIDs {
				// Entries keep their positions: the first one decides the classification.
				if cid.Error != nil {
					return &ItemError{Command: cmdGetClassificationsOfElements, Index: offset + i, Code: cid.Error.Code, Message: cid.Error.Message}
				}
				if cid.ClassificationID == nil {
					return fmt.Errorf("%s element %d entry %d: missing classificationId", cmdGetClassificationsOfElements, offset+i, j)
				}
				systemID, err := cid.ClassificationID.ClassificationSystemID.parse()
				if err != nil {
					return fmt.Errorf("%s element %d: %w", cmdGetClassificationsOfElements, offset+i, err)
				}
				itemID, err := cid.ClassificationID.ClassificationItemID.parse()
				if err != nil {
					return fmt.Errorf("%s element %d: %w", cmdGetClassificationsOfElements, offset+i, err)
				}
				assignments = append(assignments, domain.ClassificationAssignment{SystemGUID: systemID, ItemGUID: itemID})
			}
			rows = append(rows, assignments)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// forEachBatch calls fn sequentially for consecutive slices of at most BatchSize elements.
func (c *Client) forEachBatch(elements []uuid.UUID, fn func(offset int, batch []elementIDWrapper) error) error {
	size := c.config.BatchSize
	for offset := 0; offset < len(elements); offset += size {
		end := offset + size
		if end > len(elements) {
			end = len(elements)
		}
		batch := make([]elementIDWrapper, 0, end-offset)
		for _, id := range elements[offset:end] {
			batch = append(batch, elementIDWrapper{ElementID: newGUIDRef(id)})
		}
		if err := fn(offset, batch); err != nil {
			return err
		}
	}
	return nil
}
