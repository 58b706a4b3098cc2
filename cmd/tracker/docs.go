package main

//go:generate swag init -g cmd/tracker/main.go -o docs

// @title Portfolio Tracker API
// @version 0.1.0
// @description Merged portfolio quotes and fundamentals, sync status and operator controls.
// @host localhost:8080
// @BasePath /
// @schemes http
