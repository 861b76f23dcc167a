package plan

import (
	"strings"

	"github.com/ignite/retail-planner/internal/domain"
)

// ItemChanges holds the mutable fields of a plan item. Nil fields are left
// alone. An empty WaveCode removes the item from its wave. Switching to a
// campaign other than the recommended one needs CampaignName.
type ItemChanges struct {
	CampaignID    *string `json:"campaign_id,omitempty"`
	CampaignName  *string `json:"campaign_name,omitempty"`
	Quantity      *int    `json:"quantity,omitempty"`
	WaveCode      *string `json:"wave_code,omitempty"`
	IsIncluded    *bool   `json:"is_included,omitempty"`
	OverrideNotes *string `json:"override_notes,omitempty"`
}

// Audit field names. Explain replays these against the AI snapshot.
const (
	fieldCampaignID    = "campaign_id"
	fieldCampaignName  = "campaign_name"
	fieldQuantity      = "quantity"
	fieldWaveCode      = "wave_code"
	fieldIsIncluded    = "is_included"
	fieldOverrideNotes = "override_notes"
	fieldIsOverridden  = "is_overridden"
)

// applyChanges validates ch and applies it to a copy of item. It returns the
// updated item and the field diff; an empty diff means nothing changed.
func applyChanges(item domain.PlanItem, ch ItemChanges, waves map[string]struct{}) (domain.PlanItem, []domain.FieldChange, error) {
	var diff []domain.FieldChange
	record := func(field string, from, to any) {
		diff = append(diff, domain.FieldChange{Field: field, OldValue: from, NewValue: to})
	}

	if ch.CampaignID != nil {
		id := strings.TrimSpace(*ch.CampaignID)
		if id == "" {
			return item, nil, invalid(fieldCampaignID, "must not be empty")
		}
		if id != item.CampaignID {
			var name string
			switch {
			case ch.CampaignName != nil:
				name = strings.TrimSpace(*ch.CampaignName)
			case id == item.AI.CampaignID:
				name = item.AI.CampaignName
			}
			if name == "" && id != item.AI.CampaignID {
				return item, nil, invalid(fieldCampaignName, "is required when switching to a campaign other than the recommended one")
			}
			record(fieldCampaignID, item.CampaignID, id)
			if name != item.CampaignName {
				record(fieldCampaignName, item.CampaignName, name)
			}
			item.CampaignID, item.CampaignName = id, name
		}
	} else if ch.CampaignName != nil {
		if name := strings.TrimSpace(*ch.CampaignName); name != item.CampaignName {
			record(fieldCampaignName, item.CampaignName, name)
			item.CampaignName = name
		}
	}

	if ch.Quantity != nil {
		if *ch.Quantity <= 0 {
			return item, nil, invalid(fieldQuantity, "must be positive")
		}
		if *ch.Quantity != item.Quantity {
			record(fieldQuantity, item.Quantity, *ch.Quantity)
			item.Quantity = *ch.Quantity
		}
	}

	if ch.WaveCode != nil {
		code := strings.TrimSpace(*ch.WaveCode)
		if code != "" {
			if _, ok := waves[code]; !ok {
				return item, nil, invalid(fieldWaveCode, "references unknown wave "+code)
			}
		}
		if code != item.WaveCode {
			record(fieldWaveCode, item.WaveCode, code)
			item.WaveCode = code
		}
	}

	if ch.IsIncluded != nil && *ch.IsIncluded != item.IsIncluded {
		record(fieldIsIncluded, item.IsIncluded, *ch.IsIncluded)
		item.IsIncluded = *ch.IsIncluded
	}

	if ch.OverrideNotes != nil && *ch.OverrideNotes != item.OverrideNotes {
		record(fieldOverrideNotes, item.OverrideNotes, *ch.OverrideNotes)
		item.OverrideNotes = *ch.OverrideNotes
	}

	if len(diff) == 0 {
		return item, nil, nil
	}
	if overridden := item.Diverges(); overridden != item.IsOverridden {
		record(fieldIsOverridden, item.IsOverridden, overridden)
		item.IsOverridden = overridden
	}
	return item, diff, nil
}
