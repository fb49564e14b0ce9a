package main

import (
	"context"
	"fmt"

	"github.com/dostvardhan/drivegate"
	"github.com/dostvardhan/drivegate/config"
	"github.com/dostvardhan/drivegate/database"
	"github.com/dostvardhan/drivegate/drive"
)

// buildService wires the metadata index and the storage provider client
// into the transfer service. The returned cleanup closes the index
// backend.
func buildService(ctx context.Context, cfg *config.Config) (*drivegate.Service, func(), error) {
	repo, cleanup, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect index backend: %w", err)
	}

	creds, err := drive.NewCredentials(drive.CredentialConfig{
		ClientID:     cfg.Storage.ClientID,
		ClientSecret: cfg.Storage.ClientSecret,
		RefreshToken: cfg.Storage.RefreshToken,
		TokenURL:     cfg.Storage.TokenURL,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("delegated credential: %w", err)
	}

	client := drive.NewClient(creds, drive.ClientConfig{
		APIBase:    cfg.Storage.APIBase,
		UploadBase: cfg.Storage.UploadBase,
		FolderID:   cfg.Storage.FolderID,
	})

	source, err := drivegate.ParseListSource(cfg.List.Source)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("parse list source: %w", err)
	}

	service, err := drivegate.NewService(repo, client, drivegate.ServiceConfig{
		ListSource: source,
		MakePublic: cfg.Storage.MakePublic,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create service: %w", err)
	}

	return service, cleanup, nil
}
