package scheduler

import logx "tickbot/pkg/logx"

func logxNop() logx.Logger { return logx.Nop() }
