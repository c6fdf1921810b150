package app

import (
	"context"
	"strings"

	"tickbot/internal/config"
	"tickbot/internal/control"
	logx "tickbot/pkg/logx"
)

// reloadLoop applies published configs until ctx is done. Bursts are
// coalesced: only the newest pending config is applied.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	rt, err := config.Resolve(newCfg)
	if err != nil {
		a.log.Warn("invalid config after commit; keeping previous", logx.Err(err))
		return
	}

	if config.Changed(sections, config.SectionLogging) {
		a.logs.Apply(mapLoggingConfig(newCfg))
	}
	if config.Changed(sections, config.SectionRobot) {
		a.log.Warn("robot config changed; restart required for loop and simulator changes to take effect")
	}
	if config.Changed(sections, config.SectionStorage) {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if config.Changed(sections, config.SectionSystemd) {
		a.log.Warn("systemd config changed; restart required for changes to take effect")
	}

	reselect := false
	if config.Changed(sections, config.SectionRoutines) {
		cat, err := LoadCatalog(a.cfgPath, newCfg, a.deps())
		if err != nil {
			a.log.Warn("routines reload failed; keeping previous catalog", logx.Err(err))
		} else {
			a.catalog.Store(cat)
			reselect = true
		}
	}
	if config.Changed(sections, config.SectionAutonomous) {
		key := autoKey(newCfg)
		a.auto.Store(&key)
		reselect = true
	}
	if reselect && a.loop.Mode() == control.ModeAutonomous {
		if err := a.loop.Submit(control.Reselect()); err != nil {
			a.log.Warn("autonomous reselect not queued", logx.Err(err))
		}
	}

	if config.Changed(sections, config.SectionDebug) {
		a.debug.Reconfigure(ctx, mapDebugConfig(newCfg, rt))
	}
	if config.Changed(sections, config.SectionHousekeeping) {
		if err := a.house.Apply(ctx, mapHousekeepingConfig(newCfg, rt)); err != nil {
			a.log.Warn("housekeeping config not applied", logx.Err(err))
		}
	}

	a.log.Info("config reloaded", fields...)
}
