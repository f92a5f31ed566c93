package regions

import (
	"regexp"
	"sort"

	"github.com/bartdeslagmulder/now-cli/internal/model"
)

// Known region short codes and datacenter ids
var (
	knownRegions = map[string]struct{}{"sfo": {}, "bru": {}}
	knownDCs     = map[string]struct{}{"sfo1": {}, "bru1": {}}
)

var trailingDigitRe = regexp.MustCompile(`\d$`)

// IsValidRegionOrDcID reports whether id is a known region or datacenter id
func IsValidRegionOrDcID(id string) bool {
	if _, ok := knownRegions[id]; ok {
		return true
	}
	_, ok := knownDCs[id]
	return ok
}

// DcIDForRegion returns the default datacenter for a region ("sfo" -> "sfo1").
// Ids that already end in a digit are returned unchanged.
func DcIDForRegion(id string) string {
	if trailingDigitRe.MatchString(id) {
		return id
	}
	return id + "1"
}

// Resolve validates the regions passed on the command line (or, when none
// were passed, the regions from the project config) together with the scale
// mapping from the project config, and returns the scale to deploy with.
// Every listed region becomes a {0, 1} entry under its default DC.
func Resolve(cliRegions, configRegions []string, configScale map[string]model.Scale) (map[string]model.Scale, error) {
	regionList := cliRegions
	source := "--regions"
	if len(regionList) == 0 {
		regionList = configRegions
		source = "regions"
	}

	scale := make(map[string]model.Scale, len(configScale))
	for k, v := range configScale {
		scale[k] = v
	}

	for _, key := range sortedKeys(scale) {
		if !IsValidRegionOrDcID(key) {
			return nil, model.InputErrorf("invalid-region-or-dc",
				"The value %q in `scale` settings is not a valid region or DC identifier", key)
		}
	}

	if len(regionList) == 0 {
		return scale, nil
	}

	if len(scale) > 0 {
		return nil, model.InputErrorf("regions-and-scale-at-once",
			"Can't set both `regions` and `scale` options simultaneously")
	}

	for _, r := range regionList {
		if !IsValidRegionOrDcID(r) {
			return nil, model.InputErrorf("invalid-region-or-dc",
				"The value %q in `%s` is not a valid region or DC identifier", r, source)
		}
		scale[DcIDForRegion(r)] = model.Scale{Min: 0, Max: 1}
	}

	return scale, nil
}

// Keys returns the region/DC ids of a scale mapping in stable order
func Keys(scale map[string]model.Scale) []string {
	return sortedKeys(scale)
}

func sortedKeys(m map[string]model.Scale) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
