// Copyright 2024 Antrea Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package manager

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
)

// configWatcher signals changes to any file of the configuration. Events
// are debounced: a burst of writes results in a single notification, sent
// once no event was received for the debounce interval.
type configWatcher struct {
	watcher  *fsnotify.Watcher
	clock    clock.Clock
	debounce time.Duration
	changeCh chan struct{}

	mutex sync.RWMutex
	files sets.Set[string]
	dirs  sets.Set[string]
}

func newConfigWatcher(clock clock.Clock, debounce time.Duration) (*configWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &configWatcher{
		watcher:  watcher,
		clock:    clock,
		debounce: debounce,
		changeCh: make(chan struct{}, 1),
		files:    sets.New[string](),
		dirs:     sets.New[string](),
	}, nil
}

// setFiles changes the watched files. Directories are watched rather than
// files so that files replaced through a rename are still tracked.
func (w *configWatcher) setFiles(files []string) {
	absFiles := sets.New[string]()
	dirs := sets.New[string]()
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		absFiles.Insert(abs)
		dirs.Insert(filepath.Dir(abs))
	}
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.files = absFiles
	for dir := range w.dirs.Difference(dirs) {
		if err := w.watcher.Remove(dir); err != nil {
			klog.V(2).InfoS("Failed to stop watching directory", "dir", dir, "err", err)
		}
	}
	for dir := range dirs.Difference(w.dirs) {
		if err := w.watcher.Add(dir); err != nil {
			klog.ErrorS(err, "Failed to watch configuration directory", "dir", dir)
		}
	}
	w.dirs = dirs
}

func (w *configWatcher) changes() <-chan struct{} {
	return w.changeCh
}

func (w *configWatcher) run(ctx context.Context) {
	defer w.watcher.Close()
	var timer clock.Timer
	var timerCh <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				klog.ErrorS(nil, "Configuration watcher event channel closed")
				return
			}
			if !w.relevant(event) {
				continue
			}
			klog.V(2).InfoS("Configuration file event", "event", event.String())
			if timer == nil {
				timer = w.clock.NewTimer(w.debounce)
			} else {
				timer.Stop()
				timer.Reset(w.debounce)
			}
			timerCh = timer.C()
		case <-timerCh:
			timerCh = nil
			select {
			case w.changeCh <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			klog.ErrorS(err, "Configuration watcher error")
		}
	}
}

func (w *configWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.files.Has(abs)
}
