package main

import (
	"flag"
	"fmt"
	"os"

	"imghost/config"
	"imghost/images"
	"imghost/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/juju/ratelimit"
)

var (
	server         *gin.Engine
	addr           string
	verbosityLevel int
)

func showHelp() {
	fmt.Printf("Usage:%s {params}\n", os.Args[0])
	fmt.Println("      -a {listen addr}")
	fmt.Println("      -h (show help info)")
	fmt.Println("      -v {0-2} (verbosity level, default 0)")
}

func parse() bool {
	flag.StringVar(&addr, "a", "", "address to use")
	flag.IntVar(&verbosityLevel, "v", -1, "verbosity level, higher value - more logs")
	help := flag.Bool("h", false, "help info")
	flag.Parse()

	if *help {
		return false
	}
	return true
}

func main() {
	if !parse() {
		showHelp()
		os.Exit(-1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(-1)
	}

	// Check that the -v is not set (default -1)
	if verbosityLevel < 0 {
		verbosityLevel = cfg.LogVerbosity
	}
	if addr == "" {
		addr = cfg.Addr
	}

	logger := utils.NewLogger(verbosityLevel)
	utils.SetLogger(logger)
	logger.Info(fmt.Sprintf("verbosity level is: %d", verbosityLevel))

	// log verbosity follows the config file while the process runs
	cfg.OnReload(func(fresh *config.Config) {
		logger.Info(fmt.Sprintf("verbosity level is now: %d", fresh.LogVerbosity))
		utils.SetVerbosity(fresh.LogVerbosity)
	})

	server = gin.Default()
	server.Use(cors.Default())
	limiter := ratelimit.NewBucketWithRate(cfg.RateLimit, cfg.RateBurst)

	imageRoute, err := images.NewImageRoute(cfg, logger, limiter)
	if err != nil {
		logger.Error(err, "error creating image route")
		os.Exit(-1)
	}
	imageRoute.InitRouteTo(server)

	logger.Info(fmt.Sprintf("listening on %s", addr))
	server.Run(addr)
}
