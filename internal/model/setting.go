package model

// SettingUnitPrice is the settings key holding the price of one unit (bottle).
const SettingUnitPrice = "unit_price"

// Setting is a singleton key/value configuration row, mutated in place
// by admin actions.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
