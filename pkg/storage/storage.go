// Package storage provides persistent device settings using LittleFS.
// It handles atomic writes, version checking, and cleanup of temporary
// files left over from interrupted writes.
package storage

import (
	"errors"
	"os"
	"strings"

	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/config"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const (
	configDir  = "/config"
	deviceFile = "/config/device.bin"
	tempSuffix = ".tmp"

	deviceConfigSize = 12
)

var (
	ErrConfigNotFound = errors.New("device config not found")
	ErrInvalidConfig  = errors.New("invalid config data")
	ErrFlashFull      = errors.New("insufficient flash space")
)

// Manager handles settings persistence using LittleFS.
type Manager struct {
	fs       *littlefs.LFS
	blockDev tinyfs.BlockDevice
	mounted  bool
}

// Stats provides information about storage usage.
type Stats struct {
	TotalSpace int64
	HasConfig  bool
}

// New initializes the storage system with the given block device.
// It mounts the filesystem and performs boot-time cleanup.
// If format is true and mount fails, it will format the filesystem.
func New(blockDev tinyfs.BlockDevice, format bool) (*Manager, error) {
	lfs := littlefs.New(blockDev)

	// Conservative LittleFS settings for on-chip flash
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	err := lfs.Mount()
	if err != nil {
		if !format {
			return nil, err
		}
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		fs:       lfs,
		blockDev: blockDev,
		mounted:  true,
	}

	// Remove temp files from interrupted writes. Non-fatal; the
	// device can still operate with defaults.
	m.bootCleanup()

	// A stored config with a different format version is stale after
	// a firmware update; wipe it so defaults apply.
	if m.versionMismatch() {
		if err := m.wipe(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Close unmounts the filesystem.
func (m *Manager) Close() error {
	if m.mounted {
		m.mounted = false
		return m.fs.Unmount()
	}
	return nil
}

// bootCleanup removes temporary files left over from interrupted writes.
func (m *Manager) bootCleanup() error {
	entries, err := m.readDir(configDir)
	if err != nil {
		// Config dir might not exist yet
		if isNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, tempSuffix) {
			m.fs.Remove(configDir + "/" + name)
		}
	}

	return nil
}

// readDir reads the directory entries at the given path.
func (m *Manager) readDir(dirPath string) ([]os.FileInfo, error) {
	f, err := m.fs.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsDir() {
		return nil, errors.New("not a directory")
	}

	return f.Readdir(-1)
}

// versionMismatch reports whether a stored config exists but carries a
// different format version than the firmware.
func (m *Manager) versionMismatch() bool {
	var cfg config.DeviceConfig
	if err := m.LoadDevice(&cfg); err != nil {
		// No stored config is just a first boot.
		return false
	}
	return cfg.Version != config.CurrentVersion
}

// wipe removes the stored device config.
func (m *Manager) wipe() error {
	m.fs.Remove(deviceFile)
	return nil
}

// ensureDirs creates the config directory if it doesn't exist.
func (m *Manager) ensureDirs() error {
	if err := m.fs.Mkdir(configDir, 0755); err != nil && !isExist(err) {
		return err
	}
	return nil
}

// isExist checks if an error is "already exists".
// LittleFS errors don't always match os.IsExist, so we check the message too.
func isExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}

// isNotExist checks if an error means a missing file or directory.
// LittleFS reports these as "No directory entry".
func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "No directory entry")
}

// LoadDevice loads the stored device configuration.
func (m *Manager) LoadDevice(cfg *config.DeviceConfig) error {
	f, err := m.fs.Open(deviceFile)
	if err != nil {
		if isNotExist(err) {
			return ErrConfigNotFound
		}
		return err
	}
	defer f.Close()

	buf := make([]byte, deviceConfigSize)
	n, err := f.Read(buf)
	if err != nil {
		return err
	}
	if n != deviceConfigSize {
		return ErrInvalidConfig
	}

	return cfg.UnmarshalBinary(buf)
}

// SaveDevice saves the device configuration atomically.
func (m *Manager) SaveDevice(cfg *config.DeviceConfig) error {
	if err := m.ensureDirs(); err != nil {
		return err
	}

	cfg.Version = config.CurrentVersion

	data, err := cfg.MarshalBinary()
	if err != nil {
		return err
	}

	return m.atomicWrite(deviceFile, data)
}

// HasDevice reports whether a stored device config exists.
func (m *Manager) HasDevice() bool {
	f, err := m.fs.Open(deviceFile)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// GetStats returns storage statistics.
func (m *Manager) GetStats() (*Stats, error) {
	return &Stats{
		TotalSpace: m.blockDev.Size(),
		HasConfig:  m.HasDevice(),
	}, nil
}

// atomicWrite writes data to a temporary file, syncs it, then renames.
// This ensures the original file is never in a partially written state.
func (m *Manager) atomicWrite(filepath string, data []byte) error {
	tempPath := filepath + tempSuffix

	// Remove temp file if it exists (from interrupted previous write)
	m.fs.Remove(tempPath)

	f, err := m.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		m.fs.Remove(tempPath)
		return err
	}

	// Sync ensures the data hits flash before the rename
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			m.fs.Remove(tempPath)
			return err
		}
	}

	if err := f.Close(); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	// Remove existing file if present (LittleFS rename doesn't replace)
	m.fs.Remove(filepath)

	if err := m.fs.Rename(tempPath, filepath); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	return nil
}

// ForceWipe completely erases the stored configuration.
func (m *Manager) ForceWipe() error {
	return m.wipe()
}
