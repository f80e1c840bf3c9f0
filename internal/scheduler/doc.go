// Package scheduler держит реестр асинхронных единиц исполнения workflows.
//
// На каждый id workflow приходится не более одной невыполненной единицы:
// повторный Arm* для того же id возвращает ErrAlreadyArmed. Единица может
// быть немедленной (ArmImmediate), отложенной до момента (ArmAt) или
// отложенной на интервал (ArmAfter). Job возвращает Outcome: RearmAfter
// заменяет единицу повторной без выхода id из реестра.
//
// Структура:
//   - scheduler.go — Scheduler (Arm*, Cancel, Lookup, Outstanding, Stop)
//   - handle.go    — Handle и его состояния
//   - cron.go      — Reporter, периодические задачи по cron-расписанию
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{Logger: logger})
//	defer sched.Stop(ctx)
//
//	h, err := sched.ArmAt(id, publishAt, func(ctx context.Context) scheduler.Outcome {
//	    if err := publish(ctx); err != nil {
//	        return scheduler.RearmAfter(30 * time.Second)
//	    }
//	    return scheduler.Finish()
//	})
//
// Время берётся из clockwork.Clock, в тестах подставляется FakeClock.
package scheduler
