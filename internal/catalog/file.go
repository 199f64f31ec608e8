package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/internal/rtutil"
	"github.com/rauldose/node-red-new-sub000/pkg/model"
)

// FileIn is the file in node: reads a file into the
// payload — whole (string or bytes) or one message per line — from the
// node's configured filename or, when none is configured, whatever
// msg.filename carries.
type FileIn struct {
	*node.Node

	filename string
	format   string // utf8 | lines | buffer
}

// FileOut is the file out node: writes, appends, or
// deletes a file, with optional directory creation and newline suffix.
type FileOut struct {
	*node.Node

	filename   string
	mode       string // overwrite | append | delete
	addNewline bool
	createDir  bool
	perm       os.FileMode
}

// FileWatch is the file watch node: emits a message
// for every fsnotify event observed on a watched file or directory.
type FileWatch struct {
	*node.Node

	path    string
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

func registerFile(reg *registry.Registry, deps Deps) {
	reg.RegisterNodeConstructor(moduleName+"/"+fileSet, "file in", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		format := stringField(raw, "format", "utf8")
		if boolField(raw, "binary", false) {
			format = "buffer"
		}
		in := &FileIn{
			Node:     node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			filename: stringField(raw, "filename", ""),
			format:   format,
		}
		in.OnInput(in.handle)
		return in, nil
	}, registry.ConstructorOpts{Icon: "file.svg"})

	reg.RegisterNodeConstructor(moduleName+"/"+fileSet, "file out", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		mode := "append"
		switch stringField(raw, "overwriteFile", "false") {
		case "true":
			mode = "overwrite"
		case "delete":
			mode = "delete"
		}
		out := &FileOut{
			Node:       node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			filename:   stringField(raw, "filename", ""),
			mode:       mode,
			addNewline: boolField(raw, "appendNewline", true),
			createDir:  boolField(raw, "createDir", false),
			perm:       os.FileMode(0o644),
		}
		out.OnInput(out.handle)
		return out, nil
	}, registry.ConstructorOpts{Icon: "file.svg"})

	reg.RegisterNodeConstructor(moduleName+"/"+fileSet, "file watch", func(raw map[string]interface{}) (interface{}, error) {
		info, flowID, disabled, wires := baseFields(raw)
		w := &FileWatch{
			Node: node.New(info, flowID, disabled, wires, deps.Hooks, deps.Log, nil),
			path: stringField(raw, "filename", ""),
		}
		return w, nil
	}, registry.ConstructorOpts{Icon: "file.svg"})
}

func (in *FileIn) handle(ctx context.Context, msg *model.Message) error {
	name := in.filename
	if name == "" {
		if v, err := msg.Get("filename"); err == nil {
			name, _ = v.(string)
		}
	}
	if name == "" {
		err := fmt.Errorf("catalog: file in %s: no filename", in.ID())
		in.Error(err.Error(), msg)
		return err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		in.Error(err.Error(), msg)
		return err
	}
	switch in.format {
	case "lines":
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		groupID := rtutil.NewMessageID()
		for i, line := range lines {
			out := msg.Clone()
			out.Payload = line
			out.Props["parts"] = map[string]interface{}{
				"id":    groupID,
				"index": float64(i),
				"count": float64(len(lines)),
				"type":  "string",
				"ch":    "\n",
			}
			in.Send(ctx, out)
		}
	case "buffer":
		out := msg.Clone()
		out.Payload = data
		in.Send(ctx, out)
	default:
		out := msg.Clone()
		out.Payload = string(data)
		in.Send(ctx, out)
	}
	return nil
}

func (out *FileOut) handle(ctx context.Context, msg *model.Message) error {
	name := out.filename
	if name == "" {
		if v, err := msg.Get("filename"); err == nil {
			name, _ = v.(string)
		}
	}
	if name == "" {
		err := fmt.Errorf("catalog: file out %s: no filename", out.ID())
		out.Error(err.Error(), msg)
		return err
	}

	if out.mode == "delete" {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			out.Error(err.Error(), msg)
			return err
		}
		out.Send(ctx, msg)
		return nil
	}

	var data []byte
	binary := false
	switch p := msg.Payload.(type) {
	case []byte:
		data = p
		binary = true
	case string:
		data = []byte(p)
	default:
		data = []byte(fmt.Sprintf("%v", p))
	}
	if out.addNewline && !binary {
		data = append(data, '\n')
	}

	if out.createDir {
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			out.Error(err.Error(), msg)
			return err
		}
	}

	var err error
	if out.mode == "append" {
		var f *os.File
		f, err = os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, out.perm)
		if err == nil {
			_, err = f.Write(data)
			f.Close()
		}
	} else {
		err = os.WriteFile(name, data, out.perm)
	}
	if err != nil {
		out.Error(err.Error(), msg)
		return err
	}
	out.Send(ctx, msg)
	return nil
}

// Initialize starts the fsnotify watch for this node's configured
// path.
func (w *FileWatch) Initialize(ctx context.Context) error {
	if w.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: file watch %s: %w", w.ID(), err)
	}
	if err := watcher.Add(w.path); err != nil {
		watcher.Close()
		return fmt.Errorf("catalog: file watch %s: %w", w.ID(), err)
	}
	w.watcher = watcher
	w.stop = make(chan struct{})
	go w.loop(ctx)
	return nil
}

func (w *FileWatch) loop(ctx context.Context) {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			msg := model.New(ev.Name)
			msg.Props["file"] = ev.Name
			msg.Props["event"] = ev.Op.String()
			w.Send(ctx, msg)
		case werr, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.Error(werr.Error(), nil)
		case <-w.stop:
			return
		}
	}
}

func (w *FileWatch) Close(removed bool) error {
	if w.watcher != nil {
		close(w.stop)
		w.watcher.Close()
	}
	return w.Node.Close(removed)
}
