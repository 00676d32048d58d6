// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package project discovers the layout of an OpenDDD.NET solution: its
// layer directories, persistence settings, the building blocks already
// present, and the source of the blocks a request refers to.
//
// All paths handed out by this package are project-relative and use
// forward slashes, so they can be compared directly with plan step paths.
package project

import (
	"context"

	"github.com/AleutianAI/AleutianModeler/services/modeler/intent"
)

// Metadata describes one solution.
type Metadata struct {
	ProjectName   string `json:"project_name" validate:"required"`
	RootNamespace string `json:"root_namespace" validate:"required"`

	// ProjectRoot is the absolute directory holding src/.
	ProjectRoot string `json:"project_root" validate:"required"`

	SourcePath         string `json:"source_path" validate:"required"`
	DomainPath         string `json:"domain_path" validate:"required"`
	ApplicationPath    string `json:"application_path" validate:"required"`
	InfrastructurePath string `json:"infrastructure_path" validate:"required"`

	// InterchangePath is empty when the solution has no Interchange layer.
	InterchangePath string `json:"interchange_path,omitempty"`
	TestsPath       string `json:"tests_path"`

	PersistenceProvider string `json:"persistence_provider"`
	DatabaseProvider    string `json:"database_provider"`
}

// BlockType classifies a building block.
type BlockType string

const (
	AggregateRoot            BlockType = "aggregate_root"
	Entity                   BlockType = "entity"
	ValueObject              BlockType = "value_object"
	DomainEvent              BlockType = "domain_event"
	Repository               BlockType = "repository"
	DomainService            BlockType = "domain_service"
	Port                     BlockType = "port"
	Action                   BlockType = "action"
	Command                  BlockType = "command"
	DomainEventListener      BlockType = "domain_event_listener"
	IntegrationEventListener BlockType = "integration_event_listener"
	InfrastructureService    BlockType = "infrastructure_service"
	Adapter                  BlockType = "adapter"
)

var displayNames = map[BlockType]string{
	AggregateRoot:            "Aggregate Root",
	Entity:                   "Entity",
	ValueObject:              "Value Object",
	DomainEvent:              "Domain Event",
	Repository:               "Repository",
	DomainService:            "Domain Service",
	Port:                     "Port",
	Action:                   "Action",
	Command:                  "Command",
	DomainEventListener:      "Domain Event Listener",
	IntegrationEventListener: "Integration Event Listener",
	InfrastructureService:    "Infrastructure Service",
	Adapter:                  "Adapter",
}

// DisplayName returns the human-readable name of t.
func (t BlockType) DisplayName() string {
	if name, ok := displayNames[t]; ok {
		return name
	}
	return string(t)
}

// BuildingBlock is one classified type found in a layer.
type BuildingBlock struct {
	Type       BlockType `json:"type"`
	Name       string    `json:"name"`
	FilePath   string    `json:"file_path"`
	Namespace  string    `json:"namespace"`
	Properties []string  `json:"properties"`
	Methods    []string  `json:"methods"`
}

// Scanner reads project structure for the workflow.
type Scanner interface {
	// Metadata locates the solution and its layers.
	Metadata(ctx context.Context) (Metadata, error)

	// BuildingBlocks classifies the types in the domain, application and
	// infrastructure layers.
	BuildingBlocks(ctx context.Context, md Metadata) ([]BuildingBlock, error)

	// KnownPaths returns every file under the source directory.
	KnownPaths(ctx context.Context, md Metadata) (map[string]struct{}, error)

	// RelevantSources returns path to content for the blocks the intents
	// target.
	RelevantSources(ctx context.Context, md Metadata, intents []intent.Intent, blocks []BuildingBlock) (map[string]string, error)
}
