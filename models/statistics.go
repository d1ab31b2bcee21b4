package models

// Daily is the number of trading periods per year used to annualize daily statistics.
const Daily = 252

const (
	DefaultRiskFreeRate = 0.02
	DefaultKDEPoints    = 200
)
