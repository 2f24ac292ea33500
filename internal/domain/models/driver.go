package models

import "github.com/askarbek/ride-driver-agent/internal/domain/types"

// Driver is the backend's driver profile, fetched by phone number at startup.
type Driver struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Phone   string             `json:"phone"`
	Rating  float64            `json:"rating"`
	Status  types.DriverStatus `json:"status"`
	Vehicle Vehicle            `json:"vehicle"`
}

type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Color string `json:"color"`
	Plate string `json:"plate"`
}
