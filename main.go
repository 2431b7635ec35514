package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"pc-assign/config"
	"pc-assign/models"
	"pc-assign/services"
	"pc-assign/solvers"
	"pc-assign/storage"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	solveRunsCounter      prometheus.Counter
	infeasibleRunsCounter prometheus.Counter
	assignmentsCounter    prometheus.Counter
	lastObjectiveGauge    prometheus.Gauge
)

func init() {
	solveRunsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_solve_runs_total",
		Help: "Total number of solver runs triggered.",
	})
	infeasibleRunsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_infeasible_runs_total",
		Help: "Total number of solver runs that ended infeasible.",
	})
	assignmentsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_pairs_written_total",
		Help: "Total number of (paper, reviewer) assignments written.",
	})
	lastObjectiveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "assignment_last_objective",
		Help: "Objective value of the most recent successful solve.",
	})
	prometheus.MustRegister(solveRunsCounter, infeasibleRunsCounter, assignmentsCounter, lastObjectiveGauge)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to assignment database", zap.Error(err))
	}
	logging.Info("Successfully connected to assignment database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Paper{}, &models.Reviewer{}, &models.PreferenceRecord{},
		&models.OverrideOp{}, &models.AssignmentRun{}, &models.Assignment{})

	// Solver-Backend
	solver, err := services.NewSolver(cfg.Solver, cfg.SolverBinPath, logging)
	if err != nil {
		logging.Fatal("Solver backend setup failed", zap.Error(err))
	}
	logging.Info("Solver backend loaded", zap.String("solver", solver.Name()))

	// S3-Archiv ist optional
	var s3Client *awss3.Client
	if cfg.S3Bucket != "" {
		s3Client, err = storage.NewClient(context.Background(), storage.Settings{
			Endpoint:  cfg.S3URL,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3Key,
			SecretKey: cfg.S3Secret,
		})
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
	}

	assigner := services.NewAssignService(solver, logging)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupUploadRoutes(router, db, cfg, logging)
	setupPaperRoutes(router, db, logging)
	setupReviewerRoutes(router, db, logging)
	setupOverrideRoutes(router, db, logging)
	setupAssignmentRoutes(router, db, cfg, logging, assigner, s3Client)

	if cfg.CronSchedule != "" {
		cronScheduler := cron.New()
		cronScheduler.AddFunc(cfg.CronSchedule, func() {
			logging.Info("Running scheduled solve job...")
			run, err := runSolve(context.Background(), db, cfg, logging, assigner, s3Client, nil)
			if err != nil {
				logging.Error("Cron solve failed", zap.Error(err))
			} else {
				logging.Info("Cron solve completed",
					zap.Uint("run_id", run.ID),
					zap.Float64("objective", run.Objective))
			}
		})
		cronScheduler.Start()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// loadStore materialisiert den Pipeline-Kontext eines Laufs aus der
// Datenbank: Papers, Reviewer, Präferenzen und die geordnete
// Override-Liste.
func loadStore(db *gorm.DB) (*services.PrefStore, []models.OverrideOp, error) {
	var papers []models.Paper
	if err := db.Order("id").Find(&papers).Error; err != nil {
		return nil, nil, err
	}
	var reviewers []models.Reviewer
	if err := db.Order("id").Find(&reviewers).Error; err != nil {
		return nil, nil, err
	}
	var prefs []models.PreferenceRecord
	if err := db.Find(&prefs).Error; err != nil {
		return nil, nil, err
	}
	var ops []models.OverrideOp
	if err := db.Order("position").Find(&ops).Error; err != nil {
		return nil, nil, err
	}

	store := services.NewPrefStore()
	for i := range papers {
		p := papers[i]
		store.AddPaper(&p)
	}
	for i := range reviewers {
		r := reviewers[i]
		store.AddReviewer(&r)
	}
	for _, rec := range prefs {
		store.SetPref(rec.PaperKey, rec.ReviewerKey, rec.Preference())
	}
	return store, ops, nil
}

// runSolve führt einen kompletten Lauf aus und persistiert das
// Ergebnis. optsOverride != nil ersetzt die Default-Optionen aus der
// Konfiguration.
func runSolve(ctx context.Context, db *gorm.DB, cfg *config.Config, log *zap.Logger,
	assigner *services.AssignService, s3Client *awss3.Client, optsOverride *services.SolveOptions) (*models.AssignmentRun, error) {

	solveRunsCounter.Inc()

	opts := services.DefaultSolveOptions()
	opts.ScalePerReviewer = cfg.ScalePerUser
	opts.FixedMin = cfg.ScoreMin
	opts.FixedMax = cfg.ScoreMax
	opts.MinScore = cfg.MinScore
	opts.PagesRatio = cfg.PagesRatio
	if optsOverride != nil {
		opts = *optsOverride
	}

	store, ops, err := loadStore(db)
	if err != nil {
		return nil, err
	}

	optsJSON, _ := json.Marshal(opts)
	run := &models.AssignmentRun{
		Status:  models.RunStatusRunning,
		Solver:  assigner.Solver.Name(),
		Options: optsJSON,
	}
	if err := db.Create(run).Error; err != nil {
		return nil, err
	}

	stats, err := assigner.Run(ctx, store, ops, opts)
	if err != nil {
		status := models.RunStatusFailed
		if errors.Is(err, solvers.ErrInfeasible) {
			status = models.RunStatusInfeasible
			infeasibleRunsCounter.Inc()
		}
		db.Model(run).Updates(map[string]interface{}{"status": status, "error": err.Error()})
		return run, err
	}

	// Ergebnis persistieren
	for i := range stats.Assignments {
		stats.Assignments[i].RunID = run.ID
	}
	if len(stats.Assignments) > 0 {
		if err := db.Create(&stats.Assignments).Error; err != nil {
			db.Model(run).Updates(map[string]interface{}{"status": models.RunStatusFailed, "error": err.Error()})
			return run, err
		}
	}

	updates := map[string]interface{}{
		"status":          models.RunStatusSolved,
		"objective":       stats.Objective,
		"num_papers":      stats.NumPapers,
		"num_reviewers":   stats.NumReviewers,
		"num_assignments": len(stats.Assignments),
		"warnings":        strings.Join(stats.Warnings, "\n"),
	}

	// CSV archivieren, falls S3 konfiguriert ist
	if s3Client != nil {
		var buf bytes.Buffer
		if err := services.WriteAssignments(&buf, stats.Assignments); err == nil {
			key := fmt.Sprintf("pcassignment-run-%d.csv", run.ID)
			if err := storage.Upload(ctx, s3Client, cfg.S3Bucket, key, buf.Bytes()); err != nil {
				log.Error("S3 upload of solution CSV failed", zap.Error(err))
			} else {
				updates["s3_link"] = storage.ObjectURL(cfg.S3URL, cfg.S3Bucket, key)
			}
		}
	}

	if err := db.Model(run).Updates(updates).Error; err != nil {
		return run, err
	}
	db.First(run, run.ID)

	assignmentsCounter.Add(float64(len(stats.Assignments)))
	lastObjectiveGauge.Set(stats.Objective)
	return run, nil
}

// setupUploadRoutes konfiguriert die CSV-Import-Endpoints.
func setupUploadRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	loader := services.NewLoader(log)
	loader.DefaultNumRev = cfg.DefaultNumRev
	loader.DefaultNumPages = cfg.DefaultNumPages

	rg := router.Group("/preferences")

	rg.GET("/", func(c *gin.Context) {
		var prefs []models.PreferenceRecord
		if err := db.Order("paper_key, reviewer_key").Find(&prefs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, prefs)
	})

	// POST - HotCRP-Präferenz-Export importieren (ersetzt den Bestand)
	rg.POST("/upload", func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' required"})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
			return
		}
		defer f.Close()

		store, err := loader.LoadPreferences(f)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			for _, table := range []string{"assignments", "assignment_runs", "preferences", "papers", "reviewers"} {
				if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
					return err
				}
			}
			for _, p := range store.Papers {
				if err := tx.Create(p).Error; err != nil {
					return err
				}
			}
			for _, r := range store.Reviewers {
				if err := tx.Create(r).Error; err != nil {
					return err
				}
			}
			for _, p := range store.Papers {
				for _, r := range store.Reviewers {
					pref := store.Pref(p.Key, r.Key)
					if pref.Kind == models.PrefUnset {
						continue
					}
					rec := models.PreferenceRecord{
						PaperKey:    p.Key,
						ReviewerKey: r.Key,
						Kind:        pref.Kind.String(),
						Score:       pref.Score,
					}
					if pref.FromTopic {
						rec.Kind = "T"
					}
					if err := tx.Create(&rec).Error; err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			log.Error("Preference import failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		log.Info("Preferences imported",
			zap.Int("papers", len(store.Papers)),
			zap.Int("reviewers", len(store.Reviewers)))
		c.JSON(http.StatusOK, gin.H{
			"papers":    len(store.Papers),
			"reviewers": len(store.Reviewers),
		})
	})

	// POST - optionale Seitenzahl-CSV importieren
	router.POST("/lengths/upload", func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' required"})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
			return
		}
		defer f.Close()

		store, _, err := loadStore(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if err := loader.LoadLengths(store, f); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		updated := 0
		for _, p := range store.Papers {
			if err := db.Model(&models.Paper{}).Where("key = ?", p.Key).
				Update("num_pages", p.NumPages).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
			updated++
		}
		c.JSON(http.StatusOK, gin.H{"papers_updated": updated})
	})
}

func setupPaperRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/papers")

	rg.GET("/", func(c *gin.Context) {
		var papers []models.Paper
		if err := db.Order("id").Find(&papers).Error; err != nil {
			log.Error("Database query for papers failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	// PATCH - n_rev/n_pages eines Papers anpassen
	rg.PATCH("/:key", func(c *gin.Context) {
		key := c.Param("key")

		var paper models.Paper
		if err := db.Where("key = ?", key).First(&paper).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
				return
			}
			log.Error("DB error checking for paper on PATCH", zap.String("key", key), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var payload struct {
			NumReviews *int `json:"num_reviews"`
			NumPages   *int `json:"num_pages"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		updates := map[string]interface{}{}
		if payload.NumReviews != nil {
			updates["num_reviews"] = *payload.NumReviews
		}
		if payload.NumPages != nil {
			updates["num_pages"] = *payload.NumPages
		}
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No updatable fields provided"})
			return
		}

		if err := db.Model(&paper).Updates(updates).Error; err != nil {
			log.Error("DB error updating paper", zap.String("key", key), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update paper"})
			return
		}
		c.JSON(http.StatusOK, paper)
	})
}

func setupReviewerRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/reviewers")
	rg.GET("/", func(c *gin.Context) {
		var reviewers []models.Reviewer
		if err := db.Order("id").Find(&reviewers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, reviewers)
	})
}

// setupOverrideRoutes konfiguriert die deklarative Override-Liste.
func setupOverrideRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/overrides")

	rg.GET("/", func(c *gin.Context) {
		var ops []models.OverrideOp
		if err := db.Order("position").Find(&ops).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, ops)
	})

	rg.POST("/", func(c *gin.Context) {
		var op models.OverrideOp
		if err := c.ShouldBindJSON(&op); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		switch op.Op {
		case models.OverrideDropReviewer, models.OverrideDropPaper,
			models.OverrideForceAssign, models.OverrideForbidAssign,
			models.OverrideSetReviewCount:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown override op"})
			return
		}
		if err := db.Create(&op).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create override"})
			return
		}
		c.JSON(http.StatusCreated, op)
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		if err := db.Delete(&models.OverrideOp{}, c.Param("id")).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	})
}

// setupAssignmentRoutes konfiguriert Solve-Trigger und Ergebnis-Abruf.
func setupAssignmentRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, log *zap.Logger,
	assigner *services.AssignService, s3Client *awss3.Client) {

	rg := router.Group("/assignments")

	// POST - Solve asynchron anstoßen; Body kann die Solve-Optionen
	// komplett überschreiben
	rg.POST("/solve", func(c *gin.Context) {
		var optsOverride *services.SolveOptions
		if c.Request.ContentLength > 0 {
			opts := services.DefaultSolveOptions()
			if err := c.ShouldBindJSON(&opts); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid options body"})
				return
			}
			optsOverride = &opts
		}

		go func() {
			run, err := runSolve(context.Background(), db, cfg, log, assigner, s3Client, optsOverride)
			if err != nil {
				log.Error("Async solve failed", zap.Error(err))
				return
			}
			log.Info("Async solve completed",
				zap.Uint("run_id", run.ID),
				zap.Float64("objective", run.Objective),
				zap.Int("assignments", run.NumAssignments))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Solve triggered."})
	})

	rg.GET("/runs", func(c *gin.Context) {
		var runs []models.AssignmentRun
		if err := db.Order("id desc").Limit(50).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, runs)
	})

	rg.GET("/runs/:id", func(c *gin.Context) {
		var run models.AssignmentRun
		if err := db.First(&run, c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, run)
	})

	latestRun := func() (*models.AssignmentRun, error) {
		var run models.AssignmentRun
		err := db.Where("status = ?", models.RunStatusSolved).Order("id desc").First(&run).Error
		return &run, err
	}

	rg.GET("/latest", func(c *gin.Context) {
		run, err := latestRun()
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no solved run available"})
			return
		}
		var assignments []models.Assignment
		if err := db.Where("run_id = ?", run.ID).Order("id").Find(&assignments).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "assignments": assignments})
	})

	// GET - Ergebnis im HotCRP-Upload-Format
	rg.GET("/latest/csv", func(c *gin.Context) {
		run, err := latestRun()
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no solved run available"})
			return
		}
		var assignments []models.Assignment
		if err := db.Where("run_id = ?", run.ID).Order("id").Find(&assignments).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		var buf bytes.Buffer
		if err := services.WriteAssignments(&buf, assignments); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "csv rendering failed"})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=pcassignment-run-%d.csv", run.ID))
		c.Data(http.StatusOK, "text/csv", buf.Bytes())
	})
}
