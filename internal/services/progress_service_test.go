// internal/services/progress_service_test.go
package services

import (
	"testing"
	"time"
)

func TestProgressTrackerLifecycle(t *testing.T) {
	service := NewProgressService()
	tracker := service.CreateTracker("task-1")

	subscriber := tracker.Subscribe()

	// 订阅后立即收到当前状态
	first := <-subscriber
	if first.Status != "running" || first.Progress != 0 {
		t.Fatalf("初始状态不符: %+v", first)
	}

	tracker.UpdateProgress(40, "生成中...")
	update := <-subscriber
	if update.Progress != 40 || update.Message != "生成中..." {
		t.Fatalf("进度更新不符: %+v", update)
	}

	// 进度只增不减
	tracker.UpdateProgress(20, "")
	update = <-subscriber
	if update.Progress != 40 {
		t.Fatalf("进度不应回退: %+v", update)
	}

	tracker.Complete("完成")
	update = <-subscriber
	if update.Status != "completed" || update.Progress != 100 {
		t.Fatalf("完成状态不符: %+v", update)
	}

	select {
	case <-tracker.Done:
	case <-time.After(time.Second):
		t.Fatal("完成后Done通道应已关闭")
	}

	// 终态后更新被忽略
	tracker.UpdateProgress(50, "late")
	tracker.Fail("late failure")
	if tracker.Status != "completed" {
		t.Fatalf("终态不应被覆盖: %s", tracker.Status)
	}

	tracker.Unsubscribe(subscriber)
	// 二次退订不应panic
	tracker.Unsubscribe(subscriber)
}

func TestCreateTrackerReusesRunning(t *testing.T) {
	service := NewProgressService()

	first := service.CreateTracker("task-1")
	again := service.CreateTracker("task-1")
	if first != again {
		t.Fatal("进行中的任务应复用同一个跟踪器")
	}

	first.Complete("")
	fresh := service.CreateTracker("task-1")
	if fresh == first {
		t.Fatal("终态后重新创建应得到新跟踪器")
	}
	if fresh.Status != "running" {
		t.Fatalf("新跟踪器状态不符: %s", fresh.Status)
	}
}

func TestFailBroadcastsFailure(t *testing.T) {
	service := NewProgressService()
	tracker := service.CreateTracker("task-1")
	subscriber := tracker.Subscribe()
	<-subscriber

	tracker.Fail("上游超时")
	update := <-subscriber
	if update.Status != "failed" {
		t.Fatalf("失败状态不符: %+v", update)
	}

	select {
	case <-tracker.Done:
	case <-time.After(time.Second):
		t.Fatal("失败后Done通道应已关闭")
	}
}

func TestProgressListenerReceivesAllTasks(t *testing.T) {
	service := NewProgressService()

	type event struct {
		taskID string
		update ProgressUpdate
	}
	events := make(chan event, 16)
	service.AddListener(func(taskID string, update ProgressUpdate) {
		events <- event{taskID: taskID, update: update}
	})

	tracker := service.CreateTracker("task-1")
	tracker.UpdateProgress(40, "生成中...")
	tracker.Complete("完成")

	received := make([]event, 0, 2)
	for len(received) < 2 {
		select {
		case ev := <-events:
			if ev.taskID != "task-1" {
				t.Fatalf("任务ID不符: %s", ev.taskID)
			}
			received = append(received, ev)
		case <-time.After(time.Second):
			t.Fatalf("等待监听器回调超时，已收到%d条", len(received))
		}
	}

	if received[0].update.Progress != 40 || received[0].update.Status != "running" {
		t.Fatalf("首条更新不符: %+v", received[0].update)
	}
	if received[1].update.Status != "completed" || received[1].update.Progress != 100 {
		t.Fatalf("终态更新不符: %+v", received[1].update)
	}
}

func TestCleanupCompletedTasks(t *testing.T) {
	service := NewProgressService()

	done := service.CreateTracker("done-task")
	done.Complete("")
	service.CreateTracker("running-task")

	// 让完成时间落在保留期之外
	done.mutex.Lock()
	done.UpdateTime = time.Now().Add(-time.Hour)
	done.mutex.Unlock()

	service.CleanupCompletedTasks(30 * time.Minute)

	if _, exists := service.GetTracker("done-task"); exists {
		t.Fatal("过期的完成任务应被清理")
	}
	if _, exists := service.GetTracker("running-task"); !exists {
		t.Fatal("运行中的任务不应被清理")
	}
}
