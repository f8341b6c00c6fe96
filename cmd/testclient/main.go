package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dasmlab/pagetrans/pkg/server"
	"github.com/dasmlab/pagetrans/pkg/service"
)

var (
	serverAddr = flag.String("addr", "localhost:50051", "gRPC server address")
	providerID = flag.String("provider", "", "Provider id from the server registry (empty for the default)")
	page       = flag.Bool("page", false, "Translate the main content of a whole HTML page instead of a fragment")
	htmlFile   = flag.String("file", "", "Path to an HTML file to translate")
	markup     = flag.String("markup", "", "Markup to translate (if file not provided)")
	timeout    = flag.Duration("timeout", 5*time.Minute, "Request timeout")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	var source string
	switch {
	case *htmlFile != "":
		data, err := os.ReadFile(*htmlFile)
		if err != nil {
			logger.WithError(err).Fatalf("Failed to read file: %s", *htmlFile)
		}
		source = string(data)
	case *markup != "":
		source = *markup
	default:
		logger.Fatal("Either -file or -markup must be provided")
	}

	logger.WithFields(logrus.Fields{
		"server":      *serverAddr,
		"provider":    *providerID,
		"page":        *page,
		"markup_size": len(source),
	}).Info("Connecting to pagetrans server...")

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to server")
	}
	defer conn.Close()

	client := server.NewPageTranslationClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	startTime := time.Now()
	var (
		output  string
		failure string
	)
	if *page {
		resp, err := client.TranslatePage(ctx, &service.TranslatePageRequest{ProviderID: *providerID, HTML: source})
		if err != nil {
			logger.WithError(err).Fatal("TranslatePage call failed")
		}
		output, failure = resp.HTML, resp.Error
		if resp.Success {
			logger.WithFields(logrus.Fields{
				"mode":       resp.Mode,
				"region_tag": resp.RegionTag,
			}).Info("Main content translated")
		}
	} else {
		resp, err := client.Translate(ctx, &service.TranslateRequest{ProviderID: *providerID, Markup: source})
		if err != nil {
			logger.WithError(err).Fatal("Translate call failed")
		}
		output, failure = resp.TranslatedText, resp.Error
	}

	if failure != "" {
		logger.WithField("error", failure).Fatal("Translation was not successful")
	}

	separator := strings.Repeat("=", 80)
	fmt.Println(separator)
	fmt.Println("TRANSLATED MARKUP")
	fmt.Println(separator)
	fmt.Println(output)
	fmt.Println(separator)

	logger.WithFields(logrus.Fields{
		"duration_seconds": time.Since(startTime).Seconds(),
	}).Info("Translation completed successfully")
}
