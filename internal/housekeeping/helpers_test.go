package housekeeping

import logx "tickbot/pkg/logx"

func nopLog() logx.Logger { return logx.Nop() }
