package vm

import (
	"container/list"
	"fmt"
	"sort"
	"sync"
)

// PID stands for Process ID.
type PID uint32

// A Page is an entry in a page table. It records that page PageNum of process
// PID is resident in physical frame Frame.
type Page struct {
	PID     PID    `json:"pid"`
	PageNum uint64 `json:"page_num"`
	Frame   int    `json:"frame"`
}

// A PageTable holds the resident pages of every process.
type PageTable interface {
	// Insert puts a new page into the table. The page must not be present.
	Insert(page Page)

	// Remove deletes a page from the table. The page must be present.
	Remove(pid PID, pageNum uint64)

	// Find returns the page with the given page number. The bool return value
	// indicates if the page is resident.
	Find(pid PID, pageNum uint64) (Page, bool)

	// Pages returns the resident pages of a process in insertion order.
	Pages(pid PID) []Page

	// PIDs returns the processes that own a table, in ascending order.
	PIDs() []PID

	// NumPages returns the number of resident pages across all processes.
	NumPages() int
}

// NewPageTable creates a new PageTable.
func NewPageTable() PageTable {
	return &pageTableImpl{
		tables: make(map[PID]*processTable),
	}
}

// pageTableImpl is the default implementation of a Page Table
type pageTableImpl struct {
	sync.Mutex
	tables map[PID]*processTable
}

func (pt *pageTableImpl) getTable(pid PID) *processTable {
	pt.Lock()
	defer pt.Unlock()

	table, found := pt.tables[pid]
	if !found {
		table = &processTable{
			pid:          pid,
			entries:      list.New(),
			entriesTable: make(map[uint64]*list.Element),
		}
		pt.tables[pid] = table
	}

	return table
}

func (pt *pageTableImpl) lookupTable(pid PID) (*processTable, bool) {
	pt.Lock()
	defer pt.Unlock()

	table, found := pt.tables[pid]

	return table, found
}

// Insert put a new page into the PageTable
func (pt *pageTableImpl) Insert(page Page) {
	table := pt.getTable(page.PID)
	table.insert(page)
}

// Remove removes the entry in the page table.
func (pt *pageTableImpl) Remove(pid PID, pageNum uint64) {
	table, found := pt.lookupTable(pid)
	if !found {
		panic(fmt.Sprintf("page %d of process %d does not exist",
			pageNum, pid))
	}

	table.remove(pageNum)
}

// Find returns the page with the given number. The bool return value
// invicates if the page is found or not.
func (pt *pageTableImpl) Find(pid PID, pageNum uint64) (Page, bool) {
	table, found := pt.lookupTable(pid)
	if !found {
		return Page{}, false
	}

	return table.find(pageNum)
}

func (pt *pageTableImpl) Pages(pid PID) []Page {
	table, found := pt.lookupTable(pid)
	if !found {
		return []Page{}
	}

	return table.pages()
}

func (pt *pageTableImpl) PIDs() []PID {
	pt.Lock()
	defer pt.Unlock()

	pids := make([]PID, 0, len(pt.tables))
	for pid := range pt.tables {
		pids = append(pids, pid)
	}

	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	return pids
}

func (pt *pageTableImpl) NumPages() int {
	pt.Lock()
	tables := make([]*processTable, 0, len(pt.tables))
	for _, t := range pt.tables {
		tables = append(tables, t)
	}
	pt.Unlock()

	n := 0
	for _, t := range tables {
		n += t.len()
	}

	return n
}

type processTable struct {
	sync.Mutex
	pid          PID
	entries      *list.List
	entriesTable map[uint64]*list.Element
}

func (t *processTable) insert(page Page) {
	t.Lock()
	defer t.Unlock()

	t.pageMustNotExist(page.PageNum)

	elem := t.entries.PushBack(page)
	t.entriesTable[page.PageNum] = elem
}

func (t *processTable) remove(pageNum uint64) {
	t.Lock()
	defer t.Unlock()

	t.pageMustExist(pageNum)

	elem := t.entriesTable[pageNum]
	t.entries.Remove(elem)
	delete(t.entriesTable, pageNum)
}

func (t *processTable) find(pageNum uint64) (Page, bool) {
	t.Lock()
	defer t.Unlock()

	elem, found := t.entriesTable[pageNum]
	if found {
		return elem.Value.(Page), true
	}

	return Page{}, false
}

func (t *processTable) pages() []Page {
	t.Lock()
	defer t.Unlock()

	pages := make([]Page, 0, t.entries.Len())
	for e := t.entries.Front(); e != nil; e = e.Next() {
		pages = append(pages, e.Value.(Page))
	}

	return pages
}

func (t *processTable) len() int {
	t.Lock()
	defer t.Unlock()

	return t.entries.Len()
}

func (t *processTable) pageMustExist(pageNum uint64) {
	_, found := t.entriesTable[pageNum]
	if !found {
		panic(fmt.Sprintf("page %d of process %d does not exist",
			pageNum, t.pid))
	}
}

func (t *processTable) pageMustNotExist(pageNum uint64) {
	_, found := t.entriesTable[pageNum]
	if found {
		panic(fmt.Sprintf("page %d of process %d already exists",
			pageNum, t.pid))
	}
}
