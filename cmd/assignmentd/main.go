package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	api "github.com/cnpmnc/assignment/internal/api/http"
	auth "github.com/cnpmnc/assignment/internal/auth/middleware"
	"github.com/cnpmnc/assignment/internal/classroom"
	"github.com/cnpmnc/assignment/internal/config"
	"github.com/cnpmnc/assignment/internal/db"
	"github.com/cnpmnc/assignment/internal/exam"
	"github.com/cnpmnc/assignment/internal/grading"
	"github.com/cnpmnc/assignment/internal/submission"
	syncx "github.com/cnpmnc/assignment/internal/sync"
	"github.com/cnpmnc/assignment/internal/users"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()
	cfg := config.Load(*envFile)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	people := users.NewSQLStore(dbh)
	if err := people.EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}
	classes := classroom.NewSQLStore(dbh)
	exams := exam.NewSQLStore(dbh)

	svc := submission.NewService(submission.Deps{
		Tests:      exams,
		Keys:       exams,
		Students:   people,
		Enrollment: classes,
		Repo:       submission.NewSQLStore(dbh, syncx.NewEventRepo(cfg.SiteID)),
		Scorer:     grading.NewScorer(grading.WithWeight(cfg.PointsPerQuestion)),
	})

	// --- Auth (local JWT) ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	h := api.NewRouter(api.RouterConfig{
		DB:              dbh,
		Auth:            authSvc,
		Users:           people,
		Classes:         classes,
		Exams:           exams,
		Submissions:     svc,
		EnableLocalAuth: cfg.EnableLocalAuth,
		CORSOrigins:     cfg.CORSOrigins(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("listening on %s (mode=%s, db=%s, points=%g)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.PointsPerQuestion)
	log.Fatal(srv.ListenAndServe())
}
