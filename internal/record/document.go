package record

// Document renders the record with the field names used by the
// building_elements collection. Nil pointers become untyped nil so every
// encoder writes null.
func (r ElementRecord) Document() map[string]any {
	materials := make([]any, len(r.Components))
	for i, c := range r.Components {
		m := map[string]any{
			"materialId": c.ID,
			"name":       c.Name,
			"volume":     c.Volume,
			"fraction":   c.Fraction,
		}
		if c.Material != "" {
			m["material"] = c.Material
		}
		materials[i] = m
	}
	return map[string]any{
		"guid":             r.GUID,
		"instance_name":    r.Name,
		"ifc_class":        r.Class,
		"materials_info":   materials,
		"total_volume":     floatOrNil(r.TotalVolume),
		"volume_source":    string(r.VolumeSource),
		"allocation_basis": string(r.Basis),
		"is_multilayer":    r.IsMultilayer,
		"building_storey":  stringOrNil(r.BuildingStorey),
		"is_loadbearing":   boolOrNil(r.IsLoadbearing),
		"is_external":      boolOrNil(r.IsExternal),
		"ifc_file_origin":  r.Correlation.Origin,
		"user_id":          r.Correlation.UserID,
		"session_id":       r.Correlation.SessionID,
		"projectId":        r.Correlation.ProjectID,
	}
}

func floatOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolOrNil(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}
