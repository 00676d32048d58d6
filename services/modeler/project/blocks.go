// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianModeler/services/modeler/syntax"
)

// classifier decides the block type of one parsed file.
type classifier func(rel string, class *syntax.ClassNode, src string) (BlockType, bool)

// BuildingBlocks classifies the types of the domain, application and
// infrastructure layers.
//
// # Description
//
// Every .cs file is parsed with the syntax index and classified by the
// base list of its first class-like declaration. Files are parsed in
// parallel; results are sorted by type then name within each layer, and
// the layers are concatenated domain, application, infrastructure.
// Files that fail to parse are skipped with a warning.
//
// # Thread Safety
//
// Safe for concurrent use.
func (s *FSScanner) BuildingBlocks(ctx context.Context, md Metadata) ([]BuildingBlock, error) {
	layers := []struct {
		dir      string
		classify classifier
	}{
		{md.DomainPath, classifyDomain},
		{md.ApplicationPath, classifyApplication},
		{md.InfrastructurePath, classifyInfrastructure},
	}

	var all []BuildingBlock
	for _, l := range layers {
		if l.dir == "" {
			continue
		}
		blocks, err := s.scanLayer(ctx, md.ProjectRoot, l.dir, l.classify)
		if err != nil {
			return nil, err
		}
		all = append(all, blocks...)
	}

	s.logger.Info("building blocks scanned", slog.Int("count", len(all)))
	return all, nil
}

func (s *FSScanner) scanLayer(ctx context.Context, root, dir string, classify classifier) ([]BuildingBlock, error) {
	files, err := csharpFiles(ctx, root, dir)
	if err != nil {
		return nil, err
	}

	found := make([]*BuildingBlock, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, rel := range files {
		g.Go(func() error {
			block, err := s.scanFile(gctx, root, rel, classify)
			if errors.Is(err, errSkipFile) {
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = block
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	var blocks []BuildingBlock
	for _, b := range found {
		if b != nil {
			blocks = append(blocks, *b)
		}
	}
	sortBlocks(blocks)
	return blocks, nil
}

// scanFile returns nil, nil for files that hold no building block.
func (s *FSScanner) scanFile(ctx context.Context, root, rel string, classify classifier) (*BuildingBlock, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		s.logger.Warn("skipping unreadable file", slog.String("path", rel), slog.String("error", err.Error()))
		return nil, errSkipFile
	}
	tree, err := s.index.Parse(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("skipping unparsable file", slog.String("path", rel), slog.String("error", err.Error()))
		return nil, errSkipFile
	}
	class, ok := tree.Class()
	if !ok {
		return nil, nil
	}

	src := string(data)
	typ, ok := classify(rel, class, src)
	if !ok {
		return nil, nil
	}
	props, methods := publicMembers(class, src)
	return &BuildingBlock{
		Type:       typ,
		Name:       strings.TrimSuffix(path.Base(rel), ".cs"),
		FilePath:   rel,
		Namespace:  tree.Namespace(),
		Properties: props,
		Methods:    methods,
	}, nil
}

func csharpFiles(ctx context.Context, root, dir string) ([]string, error) {
	var files []string
	base := filepath.Join(root, filepath.FromSlash(dir))
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p != base && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".cs") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	return files, nil
}

func classifyDomain(rel string, class *syntax.ClassNode, src string) (BlockType, bool) {
	iface := isInterface(class)
	switch {
	case !iface && hasBasePrefix(class, "AggregateRootBase<"):
		return AggregateRoot, true
	case !iface && hasBasePrefix(class, "EntityBase<"):
		return Entity, true
	case hasBase(class, "IValueObject"):
		return ValueObject, true
	case hasBase(class, "IDomainEvent"):
		return DomainEvent, true
	case iface && isRepositoryName(class.Name):
		return Repository, true
	case strings.Contains(src, "IDomainService"):
		return DomainService, true
	case inDir(rel, "Ports") && hasBase(class, "IPort"):
		return Port, true
	}
	return "", false
}

func classifyApplication(_ string, class *syntax.ClassNode, src string) (BlockType, bool) {
	switch {
	case hasBasePrefix(class, "IAction<"):
		return Action, true
	case hasBase(class, "ICommand"):
		return Command, true
	case strings.Contains(src, "EventListenerBase"):
		if strings.HasSuffix(class.Name, "IntegrationEventListener") {
			return IntegrationEventListener, true
		}
		return DomainEventListener, true
	}
	return "", false
}

func classifyInfrastructure(rel string, class *syntax.ClassNode, src string) (BlockType, bool) {
	switch {
	case strings.Contains(src, "IInfrastructureService"):
		return InfrastructureService, true
	case inDir(rel, "Adapters") && slices.ContainsFunc(class.BaseTypes, isPortName):
		return Adapter, true
	case hasBase(class, "ControllerBase"):
		return Adapter, true
	}
	return "", false
}

func isInterface(class *syntax.ClassNode) bool {
	return class.NodeType == "interface_declaration"
}

func hasBase(class *syntax.ClassNode, name string) bool {
	return slices.Contains(class.BaseTypes, name)
}

func hasBasePrefix(class *syntax.ClassNode, prefix string) bool {
	return slices.ContainsFunc(class.BaseTypes, func(b string) bool {
		return strings.HasPrefix(b, prefix)
	})
}

func isRepositoryName(name string) bool {
	return len(name) > len("IRepository") && strings.HasPrefix(name, "I") && strings.HasSuffix(name, "Repository")
}

func isPortName(name string) bool {
	return len(name) > len("IPort") && strings.HasPrefix(name, "I") && strings.HasSuffix(name, "Port")
}

func inDir(rel, dir string) bool {
	return slices.Contains(strings.Split(path.Dir(rel), "/"), dir)
}

// publicMembers returns the sorted, de-duplicated names of public
// properties and methods. Interface members count as public.
func publicMembers(class *syntax.ClassNode, src string) (props, methods []string) {
	iface := isInterface(class)
	props, methods = []string{}, []string{}
	for _, m := range class.Members {
		if m.Name == "" || (!iface && !isPublic(src[m.Start:m.End])) {
			continue
		}
		switch m.Kind {
		case syntax.KindProperty:
			props = append(props, m.Name)
		case syntax.KindMethod:
			methods = append(methods, m.Name)
		}
	}
	slices.Sort(props)
	slices.Sort(methods)
	return slices.Compact(props), slices.Compact(methods)
}

// isPublic reports whether the declaration header carries the public
// modifier. The header ends at the first '{' or "=>".
func isPublic(text string) bool {
	header := text
	if i := strings.IndexByte(header, '{'); i >= 0 {
		header = header[:i]
	}
	if i := strings.Index(header, "=>"); i >= 0 {
		header = header[:i]
	}
	return slices.Contains(strings.Fields(header), "public")
}
