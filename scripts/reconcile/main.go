// Command reconcile re-applies the lifetime commission cap over all completed
// broker-linked bookings. Run it as a single offline process; re-running to
// completion is always safe.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"handyhub/config"
	"handyhub/database"
	bookingRepo "handyhub/database/repository/booking"
	"handyhub/services/commission"
	"handyhub/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	database.InitDB()

	repo := bookingRepo.NewMongoBookingRepo()
	store, ok := repo.(commission.ReconcileStore)
	if !ok {
		logger.Sugar().Fatal("reconcile: booking repository does not support reconciliation")
	}

	engine := &commission.Engine{
		DefaultRate: config.AppConfig.DefaultCommissionRate,
		JobCap:      config.AppConfig.CommissionJobCap,
	}
	job := &commission.Reconciler{
		Store:  store,
		Engine: engine,
		Logger: logger,
	}

	summary, err := job.Run()
	if err != nil {
		logger.Sugar().Errorf("reconcile: %v", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.Sugar().Errorf("reconcile: failed to encode summary: %v", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
