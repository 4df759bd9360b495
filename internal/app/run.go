package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/quakeworks/srcmodel/internal/codec"
	"github.com/quakeworks/srcmodel/internal/consolidate"
	"github.com/quakeworks/srcmodel/internal/convert"
	"github.com/quakeworks/srcmodel/internal/ctxlog"
	"github.com/quakeworks/srcmodel/internal/source"
)

// modelResult pairs a converted model with the file it came from.
type modelResult struct {
	Path  string
	Model *convert.Model
}

// convertModels runs the parse-convert pipeline over every configured
// path, one errgroup worker per file, and returns the results in input
// order. Conversion is stateless per file, so workers share nothing but
// the converter.
func (a *App) convertModels(ctx context.Context) ([]*modelResult, error) {
	files, err := expandPaths(a.cfg.Paths, modelExtension)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Model files resolved.", "count", len(files))

	results := make([]*modelResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			root, err := loadModel(path)
			if err != nil {
				return err
			}
			if a.cfg.Consolidate {
				if err := consolidate.Model(root, path); err != nil {
					return err
				}
			}
			m, err := a.conv.ConvertSourceModel(ctx, root)
			if err != nil {
				return err
			}
			results[i] = &modelResult{Path: path, Model: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Convert converts every configured model and prints one group summary
// table per model. With MaxWeight set, each model also gets a report of
// how its groups would split into blocks of bounded weight.
func (a *App) Convert(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	results, err := a.convertModels(ctx)
	if err != nil {
		return err
	}
	for _, res := range results {
		a.renderModel(res)
		if a.cfg.MaxWeight > 0 {
			if err := a.renderSplit(res, a.cfg.MaxWeight); err != nil {
				return err
			}
		}
	}
	a.logger.Info("Conversion finished.", "models", len(results))
	return nil
}

// Info converts every configured model and prints the per-source detail
// of each group.
func (a *App) Info(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	results, err := a.convertModels(ctx)
	if err != nil {
		return err
	}
	for _, res := range results {
		a.renderModel(res)
		for i, g := range res.Model.Groups {
			a.renderSources(i, g)
		}
	}
	return nil
}

// CSV flattens every configured model into tabular rows. Without an
// output directory all rows go to the output writer under one header;
// with one, each model file becomes a .csv of the same base name.
func (a *App) CSV(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	files, err := expandPaths(a.cfg.Paths, modelExtension)
	if err != nil {
		return err
	}
	rc := convert.NewRowConverter(a.conv)

	rows := make([][]convert.Row, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			root, err := loadModel(path)
			if err != nil {
				return err
			}
			if a.cfg.Consolidate {
				if err := consolidate.Model(root, path); err != nil {
					return err
				}
			}
			out, err := rc.ConvertModel(ctx, root)
			if err != nil {
				return err
			}
			rows[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if a.cfg.Output == "" {
		var all []convert.Row
		for _, r := range rows {
			all = append(all, r...)
		}
		return writeCSV(a.outW, all)
	}

	if err := os.MkdirAll(a.cfg.Output, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for i, path := range files {
		out := filepath.Join(a.cfg.Output, baseName(path)+".csv")
		if err := writeCSVFile(out, rows[i]); err != nil {
			return err
		}
		a.logger.Info("Rows written.", "file", out, "rows", len(rows[i]))
	}
	return nil
}

// Pack converts every configured model and writes each group to its own
// binary file under the output directory, then prints what was written.
func (a *App) Pack(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	results, err := a.convertModels(ctx)
	if err != nil {
		return err
	}

	outDir := a.cfg.Output
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var packed []packedGroup
	for _, res := range results {
		base := baseName(res.Path)
		for i, g := range res.Model.Groups {
			out := filepath.Join(outDir, fmt.Sprintf("%s-%03d%s", base, i, codec.Extension))
			if err := codec.EncodeFile(out, g); err != nil {
				return err
			}
			info, err := os.Stat(out)
			if err != nil {
				return err
			}
			packed = append(packed, packedGroup{File: out, Group: g, Bytes: info.Size()})
			a.logger.Debug("Group packed.", "file", out, "sources", g.Len())
		}
	}
	a.renderPacked(packed)
	return nil
}

// Unpack reads binary group files back and prints their contents.
func (a *App) Unpack(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	files, err := expandPaths(a.cfg.Paths, codec.Extension)
	if err != nil {
		return err
	}

	groups := make([]*source.Group, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			grp, err := codec.DecodeFile(path)
			if err != nil {
				return err
			}
			groups[i] = grp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, grp := range groups {
		fmt.Fprintf(a.outW, "%s:\n", files[i])
		a.renderSources(i, grp)
	}
	return nil
}

// packedGroup records one group written by Pack.
type packedGroup struct {
	File  string
	Group *source.Group
	Bytes int64
}

// baseName strips the directory and extension from a model path.
func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// writeCSV renders rows with a header line in the export column order.
func writeCSV(w io.Writer, rows []convert.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(convert.Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeCSVFile(path string, rows []convert.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
