package config

// Merge reconciles raw parsed sections with the registry, producing the
// served view: registry order unconditionally, file values where the exact
// (section, key) pair exists in the file, defaults otherwise. Keys present
// in the file but unknown to the registry are dropped, sections missing
// from the file come out all-default. Merging an already merged view is a
// no-op.
func Merge(parsed []Section) []Section {
	fileValues := map[string]map[string]string{}
	for _, sect := range parsed {
		if _, ok := fileValues[sect.Name]; !ok {
			fileValues[sect.Name] = map[string]string{}
		}
		for _, opt := range sect.Options {
			fileValues[sect.Name][opt.Key] = opt.Value
		}
	}

	out := Registry()
	for si := range out {
		vals, ok := fileValues[out[si].Name]
		if !ok {
			continue
		}
		for oi := range out[si].Options {
			if v, present := vals[out[si].Options[oi].Key]; present {
				out[si].Options[oi].Value = v
			}
		}
	}
	return out
}
